package engine

import (
	"strings"
	"testing"
)

func TestClassifyChallenges(t *testing.T) {
	pad := strings.Repeat("x", 4096)
	tests := []struct {
		name     string
		body     string
		wantKind string
	}{
		{"turnstile widget", `<div class="cf-turnstile" data-sitekey="0xAAA"></div>` + pad, "turnstile"},
		{"cloudflare script", `<script src="https://challenges.cloudflare.com/turnstile/v0/api.js"></script>` + pad, "turnstile"},
		{"recaptcha widget", `<div class="g-recaptcha" data-sitekey="6LeIxAcT"></div>` + pad, "recaptcha"},
		{"hcaptcha widget", `<div class="h-captcha" data-sitekey="10000000-ffff"></div>` + pad, "hcaptcha"},
		{"cloudflare interstitial", `<title>Just a moment</title><p>Checking your browser before accessing</p>` + pad, "cloudflare"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ch := Classify("https://example.com/page", 200, []byte(tt.body), 1024)
			if v != VerdictChallenged {
				t.Fatalf("verdict = %v, want VerdictChallenged", v)
			}
			if ch == nil || ch.Kind != tt.wantKind {
				t.Errorf("challenge = %+v, want kind %q", ch, tt.wantKind)
			}
			if ch.PageURL != "https://example.com/page" {
				t.Errorf("PageURL = %q", ch.PageURL)
			}
		})
	}
}

func TestClassifyExtractsSiteKey(t *testing.T) {
	body := `<div class="g-recaptcha" data-sitekey="6LeIxAcTAAAAAJcZ"></div>` + strings.Repeat("x", 4096)
	_, ch := Classify("https://example.com", 200, []byte(body), 1024)
	if ch == nil || ch.SiteKey != "6LeIxAcTAAAAAJcZ" {
		t.Errorf("challenge = %+v, want sitekey 6LeIxAcTAAAAAJcZ", ch)
	}
}

func TestClassifyBlockedStatuses(t *testing.T) {
	body := []byte(strings.Repeat("x", 4096))
	for _, status := range []int{403, 429, 451} {
		v, ch := Classify("https://example.com", status, body, 1024)
		if v != VerdictBlocked || ch != nil {
			t.Errorf("status %d: verdict = %v, challenge = %v, want (VerdictBlocked, nil)", status, v, ch)
		}
	}
}

func TestClassifyBlockPhrases(t *testing.T) {
	body := `<html><body>Unusual traffic from your network has been detected.` + strings.Repeat(" filler", 1024) + `</body></html>`
	v, _ := Classify("https://example.com", 200, []byte(body), 1024)
	if v != VerdictBlocked {
		t.Errorf("verdict = %v, want VerdictBlocked", v)
	}
}

func TestClassifyHollowBody(t *testing.T) {
	v, _ := Classify("https://example.com", 200, []byte("<html></html>"), 1024)
	if v != VerdictBlocked {
		t.Errorf("small 200 body: verdict = %v, want VerdictBlocked", v)
	}
}

func TestClassifyOK(t *testing.T) {
	body := "<html><body>" + strings.Repeat("All the dialogue of the episode. ", 200) + "</body></html>"
	v, ch := Classify("https://example.com", 200, []byte(body), 1024)
	if v != VerdictOK || ch != nil {
		t.Errorf("verdict = %v, challenge = %v, want (VerdictOK, nil)", v, ch)
	}
}
