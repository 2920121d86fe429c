package faq

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Normalize folds a message or question into the canonical form used for
// fingerprints and uniqueness checks. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	// the chain is stateful, so it is built per call
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
	folded, _, err := transform.String(folder, trimmed)
	if err != nil {
		folded = trimmed
	}

	var builder strings.Builder
	builder.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		if r == tatweel || unicode.Is(unicode.Cf, r) {
			// ZWNJ, ZWJ, bidi marks
			continue
		}
		r = foldPersian(unicode.ToLower(r))
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastSpace = false
			continue
		}
		// whitespace, punctuation and symbols all separate words
		if !lastSpace {
			builder.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(builder.String())
}

// foldPersian maps Arabic letter variants and non-ASCII digits onto the forms
// Persian keyboards produce.
func foldPersian(r rune) rune {
	switch r {
	case 'ي', 'ى': // Arabic yeh, alef maksura
		return 'ی'
	case 'ك': // Arabic kaf
		return 'ک'
	case 'ة': // teh marbuta
		return 'ه'
	}
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	}
	return r
}
