package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/anatolykoptev/go_scenes/internal/engine/proxypool"
)

// ChallengeSolver resolves anti-bot challenges through an external service.
// Implementations must not retry beyond their own fixed attempt cap.
type ChallengeSolver interface {
	Solve(ctx context.Context, ch Challenge) (token string, err error)
}

// Fetcher retrieves remote content while disguising its automated origin.
// Each session carries a fresh randomized identity; a session is dropped
// whenever the target blocks it or a challenge stays unsolved, so the next
// attempt goes out with a new fingerprint and proxy.
type Fetcher struct {
	cfg    Config
	pool   *proxypool.Pool // nil = proxy-less operation
	solver ChallengeSolver // nil = challenges propagate unsolved
	cache  *PageCache      // nil = no caching

	mu      sync.Mutex
	session *Session
	handle  *proxypool.Handle // proxy bound to the current session
}

// NewFetcher wires a fetcher. pool, solver and cache may all be nil.
func NewFetcher(cfg Config, pool *proxypool.Pool, solver ChallengeSolver, cache *PageCache) *Fetcher {
	return &Fetcher{cfg: cfg, pool: pool, solver: solver, cache: cache}
}

// Fetch retrieves url. The error is one of the taxonomy sentinels
// (ErrChallenged, ErrBlocked, ErrNoProxy) or a transient network error.
// The proxy outcome is reported to the pool exactly once per call.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*RawContent, error) {
	metrics.FetchRequests.Add(1)

	key := CacheKey("page", url)
	if body, ok := f.cache.Get(ctx, key); ok {
		return &RawContent{URL: url, Body: body, StatusCode: http.StatusOK, FetchedAt: time.Now(), FromCache: true}, nil
	}

	sess, handle, err := f.ensureSession()
	if err != nil {
		metrics.FetchErrors.Add(1)
		return nil, err
	}

	// Human-like pause before the request.
	select {
	case <-time.After(Jitter(f.cfg.JitterMin, f.cfg.JitterMax)):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	body, status, err := sess.Get(ctx, url)
	if err != nil {
		f.finish(handle, false, true)
		metrics.FetchErrors.Add(1)
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	verdict, challenge := Classify(url, status, body, f.cfg.MinBodyBytes)

	if verdict == VerdictChallenged {
		metrics.Challenges.Add(1)
		body, status, err = f.solveAndReissue(ctx, sess, url, challenge)
		if err != nil {
			f.finish(handle, false, true)
			return nil, err
		}
		verdict, _ = Classify(url, status, body, f.cfg.MinBodyBytes)
		if verdict != VerdictOK {
			f.finish(handle, false, true)
			return nil, ErrChallenged
		}
		metrics.ChallengesSolved.Add(1)
	}

	switch verdict {
	case VerdictBlocked:
		metrics.Blocked.Add(1)
		f.finish(handle, false, true)
		return nil, ErrBlocked
	case VerdictOK:
		if status != http.StatusOK {
			f.finish(handle, false, false)
			metrics.FetchErrors.Add(1)
			return nil, &httpStatusError{StatusCode: status}
		}
	}

	f.finish(handle, true, false)
	f.cache.Set(ctx, key, body)

	return &RawContent{URL: url, Body: body, StatusCode: status, FetchedAt: time.Now()}, nil
}

// Rotate drops the current session so the next fetch builds a new identity
// and acquires a fresh proxy. Called by the orchestrator between retries
// after a block.
func (f *Fetcher) Rotate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	f.handle = nil
}

// ensureSession returns the current session, creating one (and acquiring a
// proxy) if needed.
func (f *Fetcher) ensureSession() (*Session, *proxypool.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session != nil {
		return f.session, f.handle, nil
	}

	var handle *proxypool.Handle
	proxyURL := ""
	if f.pool != nil && f.pool.Size() > 0 {
		h, ok := f.pool.Acquire()
		if !ok {
			// Proxies are configured but all cooling down. Going direct
			// here would leak the real egress, so surface exhaustion and
			// let the caller wait.
			IncrProxyEmpty()
			return nil, nil, ErrNoProxy
		}
		handle = h
		proxyURL = h.Addr
	}

	sess, err := NewSession(f.cfg.FetchTimeout, proxyURL)
	if err != nil {
		if handle != nil {
			f.pool.Report(handle, false)
		}
		return nil, nil, fmt.Errorf("new session: %w", err)
	}

	f.session = sess
	f.handle = handle
	return sess, handle, nil
}

// finish reports the proxy outcome and optionally drops the session.
func (f *Fetcher) finish(handle *proxypool.Handle, success, drop bool) {
	if f.pool != nil && handle != nil {
		f.pool.Report(handle, success)
	}
	if drop {
		f.mu.Lock()
		if f.handle == handle {
			f.session = nil
			f.handle = nil
		}
		f.mu.Unlock()
	}
}

// solveAndReissue delegates the challenge to the solver, attaches the
// solution token to the session, and re-issues the request once.
func (f *Fetcher) solveAndReissue(ctx context.Context, sess *Session, url string, ch *Challenge) ([]byte, int, error) {
	if f.solver == nil || ch == nil {
		return nil, 0, ErrChallenged
	}

	token, err := f.solver.Solve(ctx, *ch)
	if err != nil {
		slog.Warn("fetch: challenge unsolved",
			slog.String("url", url),
			slog.String("kind", ch.Kind),
			slog.Any("error", err),
		)
		return nil, 0, ErrChallenged
	}

	if err := sess.SetCookie(url, challengeCookieName(ch.Kind), token); err != nil {
		return nil, 0, ErrChallenged
	}

	body, status, err := sess.Get(ctx, url)
	if err != nil {
		return nil, 0, fmt.Errorf("reissue %s: %w", url, err)
	}
	return body, status, nil
}

func challengeCookieName(kind string) string {
	switch kind {
	case "turnstile", "cloudflare":
		return "cf_clearance"
	case "hcaptcha":
		return "h-captcha-response"
	default:
		return "g-recaptcha-response"
	}
}
