// ABOUTME: URL slug generation for topic and category titles
// ABOUTME: Transliterates accents and collapses everything else to hyphens

package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSlug is used when a title has no ASCII-representable characters.
const DefaultSlug = "topic"

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	apostrophes  = strings.NewReplacer("'", "", "’", "", "`", "")
)

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	s := strings.ToLower(removeAccents(title))
	s = apostrophes.Replace(s)
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return DefaultSlug
	}
	return s
}

// removeAccents strips diacritical marks from a string.
func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
