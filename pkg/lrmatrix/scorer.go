package lrmatrix

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Scorer rates how alike a query and a candidate are, from 0 (unrelated) to 1 (identical).
type Scorer interface {
	Score(query, candidate string) float64
}

// SequenceScorer scores by longest-matching-block similarity over characters.
type SequenceScorer struct{}

// Score returns 2*M/T where M is the number of matched characters and T the total length.
func (SequenceScorer) Score(query, candidate string) float64 {
	m := difflib.NewMatcher(strings.Split(candidate, ""), strings.Split(query, ""))
	return m.Ratio()
}

// TokenScorer scores by Jaccard overlap of the word sets.
type TokenScorer struct{}

// Score returns |A∩B| / |A∪B| over alphanumeric tokens.
func (TokenScorer) Score(query, candidate string) float64 {
	a, b := tokenSet(query), tokenSet(candidate)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	shared := 0
	for tok := range a {
		if b[tok] {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
