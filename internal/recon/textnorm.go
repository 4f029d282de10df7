package recon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeDescription lowercases, strips accents and collapses every run
// of non-alphanumeric characters into a single space, so that the bank's
// "PAG FORN. AÇO-BRÁS" and Omie's "Pag Forn Aco Bras" compare equal.
func normalizeDescription(s string) string {
	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		} else {
			space = true
		}
	}
	return b.String()
}

// descriptionSimilar reports whether two already-raw descriptions look like
// the same movement: one normalized form contains the other, or they share
// at least half of the shorter side's tokens (tokens of 3+ chars only, so
// connectives do not create matches).
func descriptionSimilar(a, b string) bool {
	na := normalizeDescription(a)
	nb := normalizeDescription(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	ta := significantTokens(na)
	tb := significantTokens(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	set := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		set[tok] = struct{}{}
	}
	shared := 0
	for _, tok := range ta {
		if _, ok := set[tok]; ok {
			shared++
		}
	}
	return shared*2 >= len(ta)
}

func significantTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		if len(tok) >= 3 {
			out = append(out, tok)
		}
	}
	return out
}
