package engine

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// Session wraps tls-client with a Chrome TLS fingerprint and one randomized
// client identity. Requests appear as Chrome 131+ to TLS fingerprinting
// (JA3 hash). A session sticks to one proxy; rotation means a new session.
type Session struct {
	client   tls_client.HttpClient
	identity Identity
	proxyURL string
}

// NewSession creates a session that impersonates Chrome 131.
// proxyURL may be empty for direct egress.
func NewSession(timeout time.Duration, proxyURL string) (*Session, error) {
	jar := tls_client.NewCookieJar()
	opts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithCookieJar(jar),
		tls_client.WithInsecureSkipVerify(),
	}
	if proxyURL != "" {
		opts = append(opts, tls_client.WithProxyUrl(proxyURL))
	}
	client, err := tls_client.NewHttpClient(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("tls-client init: %w", err)
	}
	return &Session{client: client, identity: RandomIdentity(), proxyURL: proxyURL}, nil
}

// Get executes a GET with this session's fingerprint and identity headers.
// Returns body bytes, HTTP status code, and any transport error.
func (s *Session) Get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	for k, v := range s.identity.Headers(target) {
		req.Header.Set(k, v)
	}

	// Chrome-like header order matters for fingerprinting
	req.Header[fhttp.HeaderOrderKey] = []string{
		"accept",
		"accept-language",
		"accept-encoding",
		"referer",
		"cookie",
		"user-agent",
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("tls request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	return data, resp.StatusCode, nil
}

// SetCookie stores a cookie on the session for the target's host, used to
// attach a solved challenge token before the re-issue.
func (s *Session) SetCookie(target, name, value string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	s.client.SetCookies(u, []*fhttp.Cookie{{Name: name, Value: value}})
	return nil
}
