package engine

import (
	"strings"
	"testing"
)

func TestCleanHTML(t *testing.T) {
	got := CleanHTML(`  <p>Chuck: <b>no</b>.</p> `)
	if got != "Chuck: no." {
		t.Errorf("CleanHTML() = %q", got)
	}
}

func TestNormalizeText(t *testing.T) {
	a := NormalizeText("Chuck:   The LAW\n\tis sacred.  ")
	b := NormalizeText("chuck: the law is sacred.")
	if a != b {
		t.Errorf("normalized forms differ: %q vs %q", a, b)
	}
}

func TestTruncateAtWord(t *testing.T) {
	short := "Chuck: no."
	if got := TruncateAtWord(short, 120); got != short {
		t.Errorf("short string should pass through, got %q", got)
	}

	long := "A transcript snippet that is far too long to log in full and must be cut at a word boundary"
	got := TruncateAtWord(long, 40)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated string should end with '...', got %q", got)
	}
	if body := strings.TrimSuffix(got, "..."); len([]rune(body)) > 40 {
		t.Errorf("truncated rune count = %d, want <= 40", len([]rune(body)))
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"Chuck: The law is sacred.", 5},
	}
	for _, tt := range tests {
		if got := WordCount(tt.in); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
