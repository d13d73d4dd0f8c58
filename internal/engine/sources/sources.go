// Package sources implements one extraction strategy per transcript source
// family: structured script markup, subtitle-style full scripts, and forum
// transcript posts. Strategies are selected by the catalog's source
// descriptors through Registry; adding a source family means adding a
// variant here.
package sources

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_scenes/internal/engine/scenes"
)

// Registry maps strategy ids used by source descriptors to strategy
// implementations.
func Registry() map[string]scenes.Strategy {
	return map[string]scenes.Strategy{
		"structured": &Structured{},
		"subtitle":   &Subtitle{},
		"forum":      &Forum{},
	}
}

// resolveLinks collects href values matching selector, resolved against
// pageURL, same-host only, deduplicated in document order.
func resolveLinks(doc *goquery.Document, pageURL, selector string) []string {
	var hrefs []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return absolutize(pageURL, hrefs)
}

// absolutize resolves hrefs against pageURL, keeping same-host links only,
// deduplicated in order.
func absolutize(pageURL string, hrefs []string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			continue
		}
		abs.Fragment = ""
		u := abs.String()
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
