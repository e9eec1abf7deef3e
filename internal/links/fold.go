package links

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics and collapses whitespace so that
// "Contáctenos" and "contactenos" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// MatchAny reports whether any keyword occurs in the folded form of one of
// the haystacks. Keywords are expected to be folded already.
func MatchAny(keywords []string, haystacks ...string) bool {
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		f := Fold(h)
		for _, k := range keywords {
			if k != "" && strings.Contains(f, k) {
				return true
			}
		}
	}
	return false
}

// FoldAll folds every keyword and drops empties.
func FoldAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = Fold(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
