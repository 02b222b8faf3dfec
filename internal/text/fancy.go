// ABOUTME: HTML rendering helpers for titles and post bodies
// ABOUTME: Escapes text and applies smart punctuation

package text

import (
	"html"
	"strings"
	"unicode"
)

// FancyTitle escapes a plain title for HTML and swaps straight quotes,
// dashes and ellipses for their typographic entities.
func FancyTitle(title string) string {
	rs := []rune(title)
	var b strings.Builder
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch r {
		case '"':
			if opensQuote(rs, i) {
				b.WriteString("&ldquo;")
			} else {
				b.WriteString("&rdquo;")
			}
		case '\'':
			if opensQuote(rs, i) {
				b.WriteString("&lsquo;")
			} else {
				b.WriteString("&rsquo;")
			}
		case '-':
			switch n := runLength(rs, i, '-'); {
			case n >= 3:
				b.WriteString("&mdash;")
				i += 2
			case n == 2:
				b.WriteString("&ndash;")
				i++
			default:
				b.WriteRune(r)
			}
		case '.':
			if runLength(rs, i, '.') >= 3 {
				b.WriteString("&hellip;")
				i += 2
			} else {
				b.WriteRune(r)
			}
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func opensQuote(rs []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev := rs[i-1]
	return unicode.IsSpace(prev) || strings.ContainsRune("([{-", prev)
}

func runLength(rs []rune, i int, r rune) int {
	n := 0
	for j := i; j < len(rs) && rs[j] == r; j++ {
		n++
	}
	return n
}

// Cook renders raw post text as escaped paragraph HTML.
func Cook(raw string) string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "\r\n", "\n")
	if raw == "" {
		return ""
	}

	var paragraphs []string
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		paragraphs = append(paragraphs, "<p>"+strings.Join(lines, "<br>")+"</p>")
	}
	return strings.Join(paragraphs, "\n")
}
