package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMake(t *testing.T) {
	cases := map[string]string{
		"CHEVY":           "Chevrolet",
		"chevy":           "Chevrolet",
		"  mercedes benz": "Mercedes-Benz",
		"MB":              "Mercedes-Benz",
		"vw":              "Volkswagen",
		"bmw":             "BMW",
		"mini":            "MINI",
		"ram":             "Ram",
		"landrover":       "Land Rover",
		"ford":            "Ford",
		"alfa":            "Alfa Romeo",
		"aston  martin":   "Aston Martin",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeMake(raw), "raw=%q", raw)
	}
}

func TestTokenSetSimilarity(t *testing.T) {
	// Order-independent.
	assert.Equal(t, 1.0, TokenSetSimilarity("Civic Type R", "type r civic"))
	// Disjoint.
	assert.Equal(t, 0.0, TokenSetSimilarity("Mustang GT", "Camaro SS"))
	// Partial overlap: {corvette, stingray} vs {corvette} = 1/2.
	assert.Equal(t, 0.5, TokenSetSimilarity("Corvette Stingray", "Corvette"))
	// Empty input never matches.
	assert.Equal(t, 0.0, TokenSetSimilarity("", "Corvette"))
}
