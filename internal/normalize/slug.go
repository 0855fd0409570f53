package normalize

import (
	"regexp"
	"strings"
)

var (
	wordSeparatorRe   = regexp.MustCompile(`[\s_/]+`)
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	multipleDashRe    = regexp.MustCompile(`-+`)
)

// TagSlug converts user input to a canonical tag slug. The slug is the
// source of truth for tag identity: "Slow Burn", "slow_burn", and
// "SLOW-BURN" all name the same tag.
//
// Accented characters are folded before slugging, so "Café" → "cafe".
func TagSlug(input string) string {
	s := Fold(input)
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
