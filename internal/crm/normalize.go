package crm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a free-text key such as an industry or location for
// comparison: lower case, accents stripped, whitespace collapsed.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// SameIndustry reports whether two industry labels match after normalization.
func SameIndustry(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
