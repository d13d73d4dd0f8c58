package sources

import (
	"bytes"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_scenes/internal/engine"
	"github.com/anatolykoptev/go_scenes/internal/engine/scenes"
)

// Forum handles phpBB-style transcript boards, foreverdreaming-style:
// search results link to topics, each topic holds the transcript in post
// bodies. Post HTML is noisy (quotes, signatures, inline styling), so it
// goes through html-to-markdown before the heuristic line scan.
type Forum struct{}

func (fo *Forum) DiscoverEpisodes(raw *engine.RawContent) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		slog.Warn("forum: index parse failed", slog.String("url", raw.URL), slog.Any("error", err))
		return nil
	}
	links := resolveLinks(doc, raw.URL, `a.topictitle`)
	if len(links) == 0 {
		links = resolveLinks(doc, raw.URL, `a[href*="viewtopic"]`)
	}
	return links
}

func (fo *Forum) Extract(raw *engine.RawContent, ch scenes.Character) []scenes.Scene {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		slog.Warn("forum: parse failed", slog.String("url", raw.URL), slog.Any("error", err))
		return nil
	}

	title := strings.TrimSpace(doc.Find("h2, h1").First().Text())

	var out []scenes.Scene
	doc.Find("div.postbody div.content, div.post div.content").Each(func(_ int, post *goquery.Selection) {
		htmlText, err := post.Html()
		if err != nil {
			return
		}
		md, err := htmltomarkdown.ConvertString(htmlText)
		if err != nil {
			// Fall back to stripped text; a lost conversion must not
			// lose the post.
			md = engine.CleanHTML(htmlText)
		}
		out = append(out, scenes.GenericExtract(md, title, raw.URL, ch)...)
	})
	return out
}
