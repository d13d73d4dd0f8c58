// Package captcha adapts an external 2captcha-protocol solving service.
//
// Pure adapter: one submit, a bounded poll loop, no hidden retries. Cost
// and latency belong to the service; failures surface as ErrUnsolvable and
// the orchestrator's retry budget decides what happens next.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/anatolykoptev/go_scenes/internal/engine"
)

// ErrUnsolvable means the service could not (or will not) produce a
// solution token within the attempt cap.
var ErrUnsolvable = errors.New("captcha: unsolvable")

// DefaultAPIBase is the 2captcha-compatible endpoint root.
const DefaultAPIBase = "https://2captcha.com"

const (
	pollInterval = 5 * time.Second
	pollCap      = 20 // ~100s of polling before giving up
)

// Client talks to a 2captcha-protocol solving service.
type Client struct {
	apiKey  string
	apiBase string
	httpc   *http.Client
}

// New creates a solver client. Returns nil when apiKey is empty, which
// callers treat as "solving disabled".
func New(apiKey, apiBase string) *Client {
	if apiKey == "" {
		return nil
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		apiKey:  apiKey,
		apiBase: apiBase,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits the challenge and polls for the solution token.
// Implements engine.ChallengeSolver.
func (c *Client) Solve(ctx context.Context, ch engine.Challenge) (string, error) {
	engine.IncrSolverCall()

	method := methodFor(ch.Kind)
	if method == "" || ch.SiteKey == "" {
		engine.IncrSolverFailed()
		return "", fmt.Errorf("%w: kind %q without sitekey", ErrUnsolvable, ch.Kind)
	}

	id, err := c.submit(ctx, method, ch)
	if err != nil {
		engine.IncrSolverFailed()
		return "", err
	}

	token, err := c.poll(ctx, id)
	if err != nil {
		engine.IncrSolverFailed()
		return "", err
	}
	return token, nil
}

func methodFor(kind string) string {
	switch kind {
	case "recaptcha":
		return "userrecaptcha"
	case "hcaptcha":
		return "hcaptcha"
	case "turnstile", "cloudflare":
		return "turnstile"
	}
	return ""
}

func (c *Client) submit(ctx context.Context, method string, ch engine.Challenge) (string, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("method", method)
	q.Set("googlekey", ch.SiteKey)
	q.Set("sitekey", ch.SiteKey)
	q.Set("pageurl", ch.PageURL)
	q.Set("json", "1")

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/in.php?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		return c.httpc.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("captcha submit: %w", err)
	}
	defer resp.Body.Close()

	out, err := decode(resp.Body)
	if err != nil {
		return "", err
	}
	if out.Status != 1 {
		return "", fmt.Errorf("%w: submit rejected: %s", ErrUnsolvable, out.Request)
	}
	return out.Request, nil
}

var errNotReady = errors.New("captcha: not ready")

func (c *Client) poll(ctx context.Context, id string) (string, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("action", "get")
	q.Set("id", id)
	q.Set("json", "1")
	pollURL := c.apiBase + "/res.php?" + q.Encode()

	rc := engine.RetryConfig{
		MaxRetries:  pollCap,
		InitialWait: pollInterval,
		MaxWait:     pollInterval,
		Multiplier:  1.0,
	}

	token, err := engine.RetryDo(ctx, rc, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return "", err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		out, err := decode(resp.Body)
		if err != nil {
			return "", err
		}
		if out.Status != 1 {
			if out.Request == "CAPCHA_NOT_READY" {
				return "", engine.Transient(errNotReady)
			}
			return "", fmt.Errorf("%w: %s", ErrUnsolvable, out.Request)
		}
		return out.Request, nil
	})
	if err != nil {
		if errors.Is(err, errNotReady) {
			return "", fmt.Errorf("%w: poll cap reached", ErrUnsolvable)
		}
		return "", err
	}
	return token, nil
}

func decode(r io.Reader) (apiResponse, error) {
	var out apiResponse
	data, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil {
		return out, fmt.Errorf("captcha read response: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: bad response %q", ErrUnsolvable, engine.TruncateRunes(string(data), 80, "..."))
	}
	return out, nil
}
