// Package extract derives searchable text and listing previews from
// newsletter HTML bodies.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// highlightSelector matches the emphasised text blocks most newsletter
// templates use for their lead paragraphs.
const highlightSelector = ".stb-fore-colored, .stb-bold"

// minPreviewLen is the exclusive lower bound on candidate text length,
// counted in UTF-16 code units.
const minPreviewLen = 10

var (
	mediaStyleRe = regexp.MustCompile(`(?i)<style[^>]*>@media[\s\S]*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRe      = regexp.MustCompile(`[\s\v\x{85}\p{Z}\x{feff}]+`)
	hangulRe     = regexp.MustCompile(`[가-힣]`)
)

// PlainBody strips responsive style blocks and markup from body and
// collapses whitespace.
func PlainBody(body string) string {
	s := mediaStyleRe.ReplaceAllString(body, "")
	s = tagRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Preview picks a short excerpt from an HTML body. Candidates are the
// highlighted blocks, or every element when none are highlighted, keeping
// only unlinked, uncoloured (or black) elements whose text has Hangul and
// is longer than minPreviewLen. With more than two candidates the second
// and third are joined; otherwise the first is used.
func Preview(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	sel := doc.Find(highlightSelector)
	if sel.Length() == 0 {
		sel = doc.Find("*").FilterFunction(synthesizedFilter(body))
	}

	var candidates []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			return
		}
		style := s.AttrOr("style", "")
		hasColor := strings.Contains(style, "color")
		isBlack := strings.Contains(style, "color: #000000;")
		if hasColor && !isBlack {
			return
		}
		text := s.Text()
		if !hangulRe.MatchString(text) || utf16Len(text) <= minPreviewLen {
			return
		}
		candidates = append(candidates, text)
	})

	switch {
	case len(candidates) > 2:
		return candidates[1] + " " + candidates[2]
	case len(candidates) > 0:
		return candidates[0]
	default:
		return ""
	}
}

// synthesizedFilter drops the html, head and body wrappers the HTML parser
// inserts when the source fragment did not contain them.
func synthesizedFilter(body string) func(int, *goquery.Selection) bool {
	lower := strings.ToLower(body)
	present := map[string]bool{
		"html": strings.Contains(lower, "<html"),
		"head": strings.Contains(lower, "<head"),
		"body": strings.Contains(lower, "<body"),
	}
	return func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if n.Type != html.ElementNode {
			return false
		}
		if inSource, wrapper := present[n.Data]; wrapper {
			return inSource
		}
		return true
	}
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
