// Package normalize folds legal citation text into a comparable form:
// lower case, no diacritics, single spaces.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, strips diacritical marks through canonical
// decomposition and collapses runs of whitespace (including NBSP) into a
// single space. If the decomposition fails, text is returned unchanged.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folded, ok := stripMarks(strings.ToLower(text))
	if !ok {
		return text
	}
	return strings.Join(strings.Fields(folded), " ")
}

// Fold strips diacritical marks and leaves case and spacing untouched.
func Fold(text string) string {
	folded, ok := stripMarks(text)
	if !ok {
		return text
	}
	return folded
}

// Equal reports whether a and b are the same after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// stripMarks builds a fresh transformer per call; transform chains keep
// internal buffers and cannot be shared between goroutines.
func stripMarks(s string) (string, bool) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", false
	}
	return out, true
}
