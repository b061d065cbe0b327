package normalizer

import "strings"

// makeAliases resolves common marketplace spellings to canonical make names.
// Static configuration: keys are matched after upper-casing and whitespace
// normalization.
var makeAliases = map[string]string{
	"MERCEDES":      "Mercedes-Benz",
	"MERCEDES BENZ": "Mercedes-Benz",
	"MERCEDES-BENZ": "Mercedes-Benz",
	"MB":            "Mercedes-Benz",
	"VW":            "Volkswagen",
	"CHEVY":         "Chevrolet",
	"LAND ROVER":    "Land Rover",
	"LANDROVER":     "Land Rover",
	"ALFA ROMEO":    "Alfa Romeo",
	"ALFA":          "Alfa Romeo",
	"ASTON MARTIN":  "Aston Martin",
	"ROLLS ROYCE":   "Rolls-Royce",
	"ROLLS-ROYCE":   "Rolls-Royce",
}

// Makes that stay fully upper-cased (or otherwise break title casing).
var makeCasing = map[string]string{
	"BMW":  "BMW",
	"GMC":  "GMC",
	"MINI": "MINI",
	"RAM":  "Ram",
}

// NormalizeMake resolves a raw make string to its canonical form.
func NormalizeMake(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return cleaned
	}
	upper := strings.ToUpper(cleaned)
	if alias, ok := makeAliases[upper]; ok {
		return alias
	}
	if fixed, ok := makeCasing[upper]; ok {
		return fixed
	}
	return titleCase(cleaned)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sameMake compares a raw make against a catalog make: case-insensitive,
// whitespace-normalized, alias-resolved.
func sameMake(raw, canonical string) bool {
	return strings.EqualFold(NormalizeMake(raw), strings.Join(strings.Fields(canonical), " "))
}
