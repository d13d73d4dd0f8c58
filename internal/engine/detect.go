package engine

import (
	"net/http"
	"regexp"
	"strings"
)

// Verdict classifies one fetch response.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictChallenged
	VerdictBlocked
)

// Challenge describes an anti-bot challenge found in a response.
type Challenge struct {
	Kind    string // "recaptcha", "hcaptcha", "turnstile", "cloudflare"
	SiteKey string // empty when the page does not expose one
	PageURL string
}

// Signatures of known challenge walls. Matched case-insensitively against
// the response body.
var challengeMarkers = []struct {
	needle string
	kind   string
}{
	{"cf-turnstile", "turnstile"},
	{"challenges.cloudflare.com", "turnstile"},
	{"g-recaptcha", "recaptcha"},
	{"/recaptcha/api", "recaptcha"},
	{"h-captcha", "hcaptcha"},
	{"hcaptcha.com", "hcaptcha"},
	{"checking your browser", "cloudflare"},
	{"challenge-form", "cloudflare"},
	{"cf-chl-", "cloudflare"},
}

var blockPhrases = []string{
	"access denied",
	"has been blocked",
	"unusual traffic",
	"rate limited",
	"request rejected",
}

var siteKeyRe = regexp.MustCompile(`data-sitekey=["']([^"']+)["']`)

// Classify maps a response onto the fetch taxonomy using heuristic
// signatures: challenge-page markers first, then block statuses and denial
// phrases, then a content-length anomaly check for hollow 200s.
func Classify(pageURL string, status int, body []byte, minBody int) (Verdict, *Challenge) {
	lower := strings.ToLower(string(body))

	for _, m := range challengeMarkers {
		if strings.Contains(lower, m.needle) {
			ch := &Challenge{Kind: m.kind, PageURL: pageURL}
			if match := siteKeyRe.FindStringSubmatch(string(body)); match != nil {
				ch.SiteKey = match[1]
			}
			return VerdictChallenged, ch
		}
	}

	switch status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusUnavailableForLegalReasons:
		return VerdictBlocked, nil
	}

	for _, p := range blockPhrases {
		if strings.Contains(lower, p) {
			return VerdictBlocked, nil
		}
	}

	// A 200 with a near-empty body is a soft block, not real content.
	if status == http.StatusOK && len(body) < minBody {
		return VerdictBlocked, nil
	}

	return VerdictOK, nil
}
