// Package normalize provides text normalization for library search filters.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fold normalizes a string for case- and accent-insensitive matching.
// "Émile ZOLA" -> "emile zola". Used by the library query surface so that
// free-text filters match regardless of diacritics or casing.
func Fold(s string) string {
	// Decompose accented characters, then drop the combining marks.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Contains reports whether haystack contains needle after folding both.
// An empty needle matches everything.
func Contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}
