// ABOUTME: Quality checks for user supplied titles
// ABOUTME: Rejects low-entropy, unpronounceable, shouting or long-word text

package text

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrBlank           = errors.New("is blank")
	ErrLowEntropy      = errors.New("does not have enough distinct characters")
	ErrUnpronounceable = errors.New("has no letters or digits")
	ErrLongWord        = errors.New("contains a word that is too long")
	ErrShouting        = errors.New("is all upper case")
)

// Sentinel checks whether text looks like a meaningful title.
type Sentinel struct {
	MinEntropy     int
	MaxWordLength  int
	AllowUppercase bool
}

// Check returns the first quality problem found, or nil.
func (s Sentinel) Check(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlank
	}
	if Entropy(text) < s.MinEntropy {
		return ErrLowEntropy
	}
	if !pronounceable(text) {
		return ErrUnpronounceable
	}
	if s.MaxWordLength > 0 {
		for _, word := range strings.Fields(text) {
			if utf8.RuneCountInString(word) > s.MaxWordLength {
				return ErrLongWord
			}
		}
	}
	if !s.AllowUppercase && IsShouting(text) {
		return ErrShouting
	}
	return nil
}

// Entropy counts the distinct characters in text.
func Entropy(text string) int {
	seen := make(map[rune]struct{})
	for _, r := range text {
		seen[r] = struct{}{}
	}
	return len(seen)
}

func pronounceable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
