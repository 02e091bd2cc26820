package textclean

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	reImage      = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	reLink       = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reMarkdown   = regexp.MustCompile("[*_`~|#>-]+")
	reWhitespace = regexp.MustCompile(`\s+`)

	// StrictPolicy strips every tag; the spacing keeps words from merging.
	stripPolicy = func() *bluemonday.Policy {
		p := bluemonday.StrictPolicy()
		p.AddSpaceWhenStrippingTag(true)
		return p
	}()
)

// Clean removes images, link targets, HTML tags and markdown punctuation and
// collapses whitespace.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := reImage.ReplaceAllString(raw, "")
	s = reLink.ReplaceAllString(s, "$1")
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	s = reMarkdown.ReplaceAllString(s, " ")
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// IsUpper reports whether s has at least one cased letter and no lowercase
// ones.
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// IsNumeric reports whether s is made of digits once dots, commas and spaces
// are dropped.
func IsNumeric(s string) bool {
	stripped := strings.NewReplacer(".", "", ",", "", " ", "").Replace(s)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
