package engine

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"time"
)

// Identity is the randomized client fingerprint applied to one fetch
// session: user agent, language, viewport hint and referer. Two sessions
// never need to share an identity, so every value is drawn fresh.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
	ViewportWidth  int
	ViewportHeight int
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.8,de;q=0.5",
}

// RandomIdentity draws a fresh client identity.
func RandomIdentity() Identity {
	return Identity{
		UserAgent:      userAgents[rand.IntN(len(userAgents))],
		AcceptLanguage: acceptLanguages[rand.IntN(len(acceptLanguages))],
		ViewportWidth:  1366 + rand.IntN(555),
		ViewportHeight: 768 + rand.IntN(313),
	}
}

// Headers returns Chrome-like request headers for this identity.
// The referer imitates landing on the page from a search result.
func (id Identity) Headers(target string) map[string]string {
	h := map[string]string{
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"accept-language": id.AcceptLanguage,
		"accept-encoding": "gzip, deflate, br",
		"user-agent":      id.UserAgent,
		"viewport-width":  fmt.Sprintf("%d", id.ViewportWidth),
	}
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		h["referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Host)
	}
	return h
}

// Jitter returns a human-like random delay in [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}
