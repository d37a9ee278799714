package search

import (
	"strings"
	"unicode/utf8"

	"github.com/ivanbanos/FluxCommerce/internal/domain"
)

// minTokenLen filters noise words: query tokens this short or shorter are ignored.
const minTokenLen = 2

// tokenize splits a query into lower-cased tokens, dropping noise words.
// Length is counted in runes so accented short words ("tú", "él") are
// filtered the same as ASCII ones.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// KeywordScore computes the lexical overlap between a query and a product's
// name and description. Each token found in the searchable text counts once;
// a token also found in the name counts once more. The score is the match
// count over the token count, so name-heavy matches can exceed 1. That
// weighting is deliberate and must not be normalized away.
func KeywordScore(query string, p domain.Product) float64 {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return 0
	}

	name := strings.ToLower(p.Name)
	text := name + " " + strings.ToLower(p.Description)

	matches := 0
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			continue
		}
		matches++
		if strings.Contains(name, tok) {
			matches++
		}
	}

	return float64(matches) / float64(len(tokens))
}

// MatchingTerms returns the query tokens found anywhere in the product's
// name or description, in query order. Used for result annotation only.
func MatchingTerms(query string, p domain.Product) []string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	text := strings.ToLower(p.Name) + " " + strings.ToLower(p.Description)

	var terms []string
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if strings.Contains(text, tok) {
			terms = append(terms, tok)
		}
	}
	return terms
}
