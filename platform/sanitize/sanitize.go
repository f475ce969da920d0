// Package sanitize cleans user-typed text before it reaches a provider.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags, including tags hidden behind common entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
	).Replace(result)
	return htmlTagRegex.ReplaceAllString(result, "")
}

// Text strips markup and control characters from address input. Ordinary
// spacing is kept so that the stored text matches what was typed.
func Text(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, StripHTML(s))
}
