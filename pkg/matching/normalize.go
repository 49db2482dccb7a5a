// Package matching maps a market question to the best candidate entity
// from one source, with structural validation of numeric thresholds and
// date qualifiers on top of text similarity.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes diacritics so "São Paulo" and "Sao Paulo" compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips punctuation and diacritics, and collapses
// whitespace. Digit groups survive separator removal: "$68,000" -> "68000",
// "2.5" stays "2.5".
func Normalize(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ',' || r == '\'':
			// Thousands separators and apostrophes vanish entirely so the
			// surrounding characters join ("68,000" -> "68000", "don't" -> "dont").
		case r == '.' && i > 0 && i < len(runes)-1 &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			b.WriteRune(r) // decimal point inside a number
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize returns the normalized tokens of s.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// stopwords are tokens that carry no matching signal.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "will": true,
	"with": true, "this": true, "that": true, "as": true, "its": true,
	"do": true, "does": true, "before": true, "after": true,
}

// keywordSet returns the non-stopword tokens of s as a set.
func keywordSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if stopwords[t] {
			continue
		}
		set[t] = true
	}
	return set
}

// overlapCoefficient is |a ∩ b| / min(|a|, |b|). More forgiving than
// Jaccard when a short candidate title faces a long market question.
func overlapCoefficient(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for t := range small {
		if large[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(small))
}
