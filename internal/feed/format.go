package feed

import (
	"regexp"
	"strings"

	"aipulse/crawler/internal/models"
)

var (
	htmlTagRe        = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)(\s[^>]*)?/?>`)
	markdownHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
)

// GuessContentFormat classifies a content body as html, markdown, or text.
// HTML wins on any open tag; Markdown requires a multi-line body with a
// leading #-heading line.
func GuessContentFormat(content string) string {
	if htmlTagRe.MatchString(content) {
		return models.FormatHTML
	}
	if strings.Contains(content, "\n") && markdownHeaderRe.MatchString(content) {
		return models.FormatMarkdown
	}
	return models.FormatText
}
