package proxypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// LoadFromProvider fetches a proxy address list from a provider rotation
// endpoint (plain text, one address per line). Addresses without a scheme
// get http:// prepended. Transient failures are retried with exponential
// backoff; a dead provider returns an error and the caller runs proxy-less.
func LoadFromProvider(ctx context.Context, providerURL string) ([]string, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, providerURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("provider status %d", resp.StatusCode)
			}
			return nil, backoff.Permanent(fmt.Errorf("provider status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second

	body, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	if err != nil {
		return nil, fmt.Errorf("load proxy provider: %w", err)
	}

	return ParseAddressList(string(body)), nil
}

// ParseAddressList parses a newline-separated proxy list, skipping blanks
// and comments.
func ParseAddressList(raw string) []string {
	var addrs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		addrs = append(addrs, line)
	}
	return addrs
}
