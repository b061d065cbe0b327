package normalizer

import "strings"

// tokenSet lower-cases and splits a model/trim string into a set of tokens.
// Order-independent so "Type R Civic" and "Civic Type R" compare equal.
func tokenSet(parts ...string) map[string]bool {
	set := make(map[string]bool)
	for _, p := range parts {
		for _, tok := range strings.Fields(strings.ToLower(p)) {
			set[tok] = true
		}
	}
	return set
}

// TokenSetSimilarity returns the token overlap ratio |A∩B| / |A∪B| between
// two model/trim strings in [0, 1].
func TokenSetSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}
