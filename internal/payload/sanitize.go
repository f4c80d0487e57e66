package payload

import (
	"html"
	"regexp"
	"strings"
)

var (
	markupPattern     = regexp.MustCompile(`<[^>]*>`)
	controlPattern    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize strips markup and control characters, decodes entities and
// collapses runs of whitespace.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = markupPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = controlPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
