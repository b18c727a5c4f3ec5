// Package parsing implements the low-level text scanning the statement
// compiler is built on: a generic delimiter scanner and the placeholder
// expression micro-parser.
package parsing

import "strings"

// TokenHandler receives the content found between an open and a close
// marker and returns the text that replaces the whole token.
type TokenHandler func(content string) string

// TokenParser scans text for regions bounded by an open and a close marker
// and replaces each region with the handler's result.
//
// A backslash escapes a marker: `\#{` reaches the output as a literal `#{`
// with the backslash dropped, and an escaped close marker inside a region
// is unescaped into the captured content. An open marker that is never
// closed is copied through verbatim, including the marker itself.
type TokenParser struct {
	open    string
	close   string
	handler TokenHandler
}

// NewTokenParser returns a parser for the given marker pair.
func NewTokenParser(open, close string, handler TokenHandler) *TokenParser {
	return &TokenParser{open: open, close: close, handler: handler}
}

// Parse scans text and returns it with every token region replaced.
func (p *TokenParser) Parse(text string) string {
	if text == "" {
		return ""
	}
	start := strings.Index(text, p.open)
	if start == -1 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	var content strings.Builder
	offset := 0
	for start > -1 {
		if start > 0 && text[start-1] == '\\' {
			// Escaped open marker: drop the backslash, keep the marker.
			out.WriteString(text[offset : start-1])
			out.WriteString(p.open)
			offset = start + len(p.open)
		} else {
			content.Reset()
			out.WriteString(text[offset:start])
			offset = start + len(p.open)
			end := indexFrom(text, p.close, offset)
			for end > -1 {
				if end <= offset || text[end-1] != '\\' {
					content.WriteString(text[offset:end])
					break
				}
				// Escaped close marker: unescape it into the content.
				content.WriteString(text[offset : end-1])
				content.WriteString(p.close)
				offset = end + len(p.close)
				end = indexFrom(text, p.close, offset)
			}
			if end == -1 {
				// Unterminated region: copy the remainder through.
				out.WriteString(text[start:])
				offset = len(text)
			} else {
				out.WriteString(p.handler(content.String()))
				offset = end + len(p.close)
			}
		}
		start = indexFrom(text, p.open, offset)
	}
	out.WriteString(text[offset:])
	return out.String()
}

func indexFrom(s, substr string, from int) int {
	if from >= len(s) {
		return -1
	}
	if i := strings.Index(s[from:], substr); i >= 0 {
		return i + from
	}
	return -1
}
