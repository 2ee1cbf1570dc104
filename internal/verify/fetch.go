package verify

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// page holds what source validation needs from a fetched document
type page struct {
	Title string
	Text  string
}

// skippedElements never contribute visible text
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     false, // Walked for the title, text discarded below
	"template": true,
	"svg":      true,
}

// parsePage extracts the title and visible text from an HTML document.
// r should already be length-limited by the caller.
func parsePage(r io.Reader) (*page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	p := &page{}
	var text strings.Builder
	var walk func(n *html.Node, visible bool)
	walk = func(n *html.Node, visible bool) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "title" && p.Title == "" {
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					p.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
			if n.Data == "head" {
				visible = false
			}
		case html.TextNode:
			if visible {
				if t := strings.TrimSpace(n.Data); t != "" {
					text.WriteString(t)
					text.WriteByte(' ')
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, visible)
		}
	}
	walk(doc, true)

	p.Text = strings.TrimSpace(text.String())
	return p, nil
}

// mentionsAny reports whether the page text or title contains any of the
// given terms, case-insensitive. Empty terms never match.
func (p *page) mentionsAny(terms []string) bool {
	haystack := strings.ToLower(p.Title + " " + p.Text)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
