package sources

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_scenes/internal/engine"
	"github.com/anatolykoptev/go_scenes/internal/engine/scenes"
)

// Structured handles sources with structured script markup,
// springfieldspringfield-style: per-episode links on a show index page and
// a script container on each episode page.
type Structured struct{}

func (st *Structured) DiscoverEpisodes(raw *engine.RawContent) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		slog.Warn("structured: index parse failed", slog.String("url", raw.URL), slog.Any("error", err))
		return nil
	}
	return resolveLinks(doc, raw.URL, `a[href*="view_episode_scripts"]`)
}

func (st *Structured) Extract(raw *engine.RawContent, ch scenes.Character) []scenes.Scene {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		slog.Warn("structured: parse failed", slog.String("url", raw.URL), slog.Any("error", err))
		return nil
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").Text())
	}

	container := doc.Find(".scrolling-script-container").First()
	if container.Length() == 0 {
		container = doc.Find(".script-container, article, .content").First()
	}
	if container.Length() == 0 {
		slog.Debug("structured: no script container", slog.String("url", raw.URL))
		return nil
	}

	// Script containers hold raw text with <br> separators; turn them
	// into newlines before the line scan.
	htmlText, err := container.Html()
	if err != nil {
		return nil
	}

	return scenes.GenericExtract(brToNewline(htmlText), title, raw.URL, ch)
}

var brReplacer = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")

func brToNewline(htmlText string) string {
	return engine.CleanHTML(brReplacer.Replace(htmlText))
}
