package sources

import (
	"bytes"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_scenes/internal/engine"
	"github.com/anatolykoptev/go_scenes/internal/engine/scenes"
)

// Subtitle handles subtitle-derived full-script sources,
// subslikescript-style: one flat script body per episode page, speakers as
// all-caps cue lines, dashes for unattributed subtitle lines. Uses
// golang.org/x/net/html directly because the script div mixes text nodes
// and <br> separators that goquery's Text() would glue together.
type Subtitle struct{}

func (su *Subtitle) DiscoverEpisodes(raw *engine.RawContent) []string {
	doc, err := html.Parse(bytes.NewReader(raw.Body))
	if err != nil {
		slog.Warn("subtitle: index parse failed", slog.String("url", raw.URL), slog.Any("error", err))
		return nil
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := getAttr(n, "href"); strings.Contains(href, "/series/") {
				links = append(links, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return absolutize(raw.URL, links)
}

func (su *Subtitle) Extract(raw *engine.RawContent, ch scenes.Character) []scenes.Scene {
	doc, err := html.Parse(bytes.NewReader(raw.Body))
	if err != nil {
		slog.Warn("subtitle: parse failed", slog.String("url", raw.URL), slog.Any("error", err))
		return nil
	}

	title := strings.TrimSpace(textContent(findElement(doc, "h1")))

	script := findByClass(doc, "full-script")
	if script == nil {
		slog.Debug("subtitle: no full-script body", slog.String("url", raw.URL))
		return nil
	}

	turns := parseCues(scriptLines(script))
	if len(turns) == 0 {
		return nil
	}

	span, ok := characterSpan(turns, ch)
	if !ok {
		return nil
	}

	season, episode, code := scenes.ParseEpisodeCode(title)
	var text strings.Builder
	for _, t := range span {
		if t.Speaker != "" {
			text.WriteString(t.Speaker + ": ")
		}
		text.WriteString(t.Line + "\n")
	}

	return []scenes.Scene{{
		Season:       season,
		Episode:      episode,
		EpisodeCode:  code,
		EpisodeTitle: title,
		Text:         text.String(),
		Dialogue:     span,
		SourceURL:    raw.URL,
	}}
}

// scriptLines flattens a script node into logical lines, breaking on <br>
// and block elements.
func scriptLines(n *html.Node) []string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && (n.Data == "br" || n.Data == "p" || n.Data == "div"):
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	var lines []string
	for _, l := range strings.Split(sb.String(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// parseCues turns script lines into dialogue turns. All-caps lines carry
// the speaker; dash-prefixed lines are unattributed subtitle cues that
// inherit the current speaker.
func parseCues(lines []string) []scenes.DialogueTurn {
	var turns []scenes.DialogueTurn
	speaker := ""
	for _, line := range lines {
		switch {
		case isCapsCue(line):
			speaker = strings.TrimRight(line, ":")
		case strings.HasPrefix(line, "-"):
			turns = append(turns, scenes.DialogueTurn{Speaker: speaker, Line: strings.TrimSpace(strings.TrimPrefix(line, "-"))})
		default:
			turns = append(turns, scenes.DialogueTurn{Speaker: speaker, Line: line})
		}
	}
	return turns
}

func isCapsCue(line string) bool {
	trimmed := strings.TrimRight(line, ":")
	if len(trimmed) < 2 || len(trimmed) > 40 || trimmed != strings.ToUpper(trimmed) {
		return false
	}
	// Must contain at least one letter, not be a pure stage direction.
	return strings.IndexFunc(trimmed, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
}

const spanMargin = 5 // turns of context kept around the character's lines

// characterSpan returns the contiguous run of turns from just before the
// character's first line to just after their last, or false when the
// character never speaks and is not mentioned enough.
func characterSpan(turns []scenes.DialogueTurn, ch scenes.Character) ([]scenes.DialogueTurn, bool) {
	first, last := -1, -1
	for i, t := range turns {
		if ch.SpokenBy(t.Speaker) || mentioned(t.Line, ch) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, false
	}
	lo := max(0, first-spanMargin)
	hi := min(len(turns), last+spanMargin+1)
	return turns[lo:hi], true
}

func mentioned(line string, ch scenes.Character) bool {
	l := strings.ToLower(line)
	for _, n := range ch.Names {
		if strings.Contains(l, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// --- HTML tree helpers ---

// getAttr returns the value of an attribute on a node, or "".
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent recursively extracts all text from a node.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// findByClass finds the first descendant element whose class attribute
// contains className.
func findByClass(n *html.Node, className string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && strings.Contains(getAttr(n, "class"), className) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, className); found != nil {
			return found
		}
	}
	return nil
}
