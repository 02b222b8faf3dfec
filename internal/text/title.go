// ABOUTME: Title sanitization and cleanup
// ABOUTME: Strips markup with goquery and applies title prettify rules

package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	zeroWidth      = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")
	whitespaceRun  = regexp.MustCompile(`\s+`)
	exclamationRun = regexp.MustCompile(`!{2,}`)
	questionRun    = regexp.MustCompile(`\?{2,}`)
	trailingPeriod = regexp.MustCompile(`([^.])\.$`)
)

// sanitizePasses bounds how many layers of entity-encoded markup are peeled.
const sanitizePasses = 3

// SanitizeTitle reduces user supplied HTML to its visible text.
// Script and style contents are dropped entirely. Markup that only appears
// once entities are decoded is stripped as well.
func SanitizeTitle(raw string) string {
	s := raw
	for i := 0; i < sanitizePasses; i++ {
		next := visibleText(s)
		done := next == s || !strings.ContainsRune(next, '<')
		s = next
		if done {
			break
		}
	}
	return strings.TrimSpace(zeroWidth.Replace(s))
}

func visibleText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// CleanOptions toggles the prettify rules applied by CleanTitle.
type CleanOptions struct {
	Prettify       bool
	AllowUppercase bool
}

// CleanTitle normalizes whitespace and, when enabled, prettifies the title.
func CleanTitle(title string, opts CleanOptions) string {
	s := whitespaceRun.ReplaceAllString(strings.TrimSpace(title), " ")
	if !opts.Prettify || s == "" {
		return s
	}

	s = exclamationRun.ReplaceAllString(s, "!")
	s = questionRun.ReplaceAllString(s, "?")
	if !opts.AllowUppercase && IsShouting(s) {
		s = strings.ToLower(s)
	}
	s = capitalizeFirst(s)
	s = trailingPeriod.ReplaceAllString(s, "$1")
	return s
}

// IsShouting reports whether every letter in s is upper case.
func IsShouting(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsLower(r) {
			return false
		}
	}
	return letters > 0
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
