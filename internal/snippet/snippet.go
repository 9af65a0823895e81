// Package snippet generates KWIC (Key Word In Context) extracts for search
// results: a window of text around the first query-term match, snapped to
// whitespace boundaries, HTML-escaped, with every match highlighted.
package snippet

import (
	"html"
	"regexp"
	"strings"
)

const defaultWindowSize = 150

// Snippet is a generated extract: Text carries <mark> highlighting,
// PlainText is the same extract without markup.
type Snippet struct {
	Text      string
	PlainText string
}

// Generate builds a Snippet from text given a set of already-analyzed query
// terms. An empty text yields the zero Snippet; empty terms or no match fall
// back to the first windowSize bytes, with a trailing ellipsis only when the
// text is longer than that.
func Generate(text string, terms []string, windowSize int) Snippet {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}

	if text == "" {
		return Snippet{}
	}

	pattern := buildPattern(terms)
	if pattern == nil {
		return truncated(text, windowSize)
	}

	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return truncated(text, windowSize)
	}

	start, end := windowAround(text, loc[0], windowSize)
	raw := strings.TrimSpace(text[start:end])

	plain := raw
	if start > 0 {
		plain = "..." + plain
	}
	if end < len(text) {
		plain = plain + "..."
	}

	escaped := html.EscapeString(plain)
	highlighted := pattern.ReplaceAllStringFunc(escaped, func(m string) string {
		return "<mark>" + m + "</mark>"
	})

	return Snippet{Text: highlighted, PlainText: plain}
}

// buildPattern compiles a case-insensitive alternation of the given terms.
// Returns nil if there are no usable terms.
func buildPattern(terms []string) *regexp.Regexp {
	var escaped []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(t))
	}
	if len(escaped) == 0 {
		return nil
	}
	return regexp.MustCompile("(?i)(" + strings.Join(escaped, "|") + ")")
}

// windowAround extracts [start,end) of approximately windowSize characters
// centered on matchPos, snapping outward to the nearest whitespace within
// a 20-character tolerance, as the reference implementation does.
func windowAround(text string, matchPos, windowSize int) (int, int) {
	half := windowSize / 2
	start := matchPos - half
	if start < 0 {
		start = 0
	}
	end := matchPos + half
	if end > len(text) {
		end = len(text)
	}

	if start > 0 {
		searchEnd := start + 20
		if searchEnd > len(text) {
			searchEnd = len(text)
		}
		if idx := strings.LastIndex(text[:searchEnd], " "); idx != -1 && idx > start-20 {
			start = idx + 1
		}
	}

	if end < len(text) {
		searchStart := end - 20
		if searchStart < 0 {
			searchStart = 0
		}
		if idx := strings.Index(text[searchStart:], " "); idx != -1 && searchStart+idx < end+20 {
			end = searchStart + idx
		}
	}

	return start, end
}

func truncated(text string, windowSize int) Snippet {
	if len(text) <= windowSize {
		return Snippet{Text: html.EscapeString(text), PlainText: text}
	}
	cut := text[:windowSize] + "..."
	return Snippet{Text: html.EscapeString(cut), PlainText: cut}
}

// Highlight is a convenience wrapper returning just the highlighted HTML.
func Highlight(text string, terms []string, windowSize int) string {
	return Generate(text, terms, windowSize).Text
}
