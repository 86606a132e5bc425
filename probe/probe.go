// Package probe counts how many elements of a rendered document each named
// selector matches.
package probe

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// HTMLSource returns the rendered document of a page.
type HTMLSource interface {
	HTML(ctx context.Context) (string, error)
}

// Count parses html and returns the match count of every selector.
// Selectors that do not compile count as -1.
func Count(html string, selectors map[string]string) (map[string]int, error) {
	if len(selectors) == 0 {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(selectors))
	for name, sel := range selectors {
		m, err := cascadia.Compile(sel)
		if err != nil {
			out[name] = -1
			continue
		}
		out[name] = doc.FindMatcher(m).Length()
	}
	return out, nil
}

// Prober probes live pages.
type Prober struct{}

// Probe reads the page's rendered HTML and counts selector matches.
func (Prober) Probe(ctx context.Context, page HTMLSource, selectors map[string]string) (map[string]int, error) {
	if len(selectors) == 0 {
		return nil, nil
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return Count(html, selectors)
}
