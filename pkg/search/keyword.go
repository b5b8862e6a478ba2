package search

import (
	"strings"
	"unicode"
)

// keywordCandidateFactor bounds how many chunk candidates are fetched per
// keyword query relative to the requested limit.
const keywordCandidateFactor = 10

// Tokenize splits a query into lowercase word tokens.
func Tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// keywordScore is the fraction of distinct query tokens found in the text,
// in [0, 1]. It is deliberately crude: keyword mode is a degraded fallback
// and its scores are not comparable to vector similarities.
func keywordScore(tokens []string, text string) float32 {
	if len(tokens) == 0 {
		return 0
	}

	distinct := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if tok != "" {
			distinct[tok] = true
		}
	}
	if len(distinct) == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	matched := 0
	for tok := range distinct {
		if strings.Contains(lower, tok) {
			matched++
		}
	}
	return float32(matched) / float32(len(distinct))
}
