package domain

// FactorScore is one sub-score of a match, kept so the rank key and the
// explanation text come out of the same pass.
type FactorScore struct {
	Factor string  `json:"factor"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	// Stated marks factors the user explicitly asked about; only those can
	// produce tradeoffs.
	Stated bool `json:"stated"`
}

// MatchResult pairs a catalog record with its score against one preference
// profile. Results are ephemeral: recomputed on every search, cached only for
// response latency, never the source of truth.
type MatchResult struct {
	Record    CarRecord     `json:"record"`
	Profile   *CarProfile   `json:"profile,omitempty"`
	Score     float64       `json:"score"`
	Reasons   []string      `json:"reasons"`
	Tradeoffs []string      `json:"tradeoffs"`
	Factors   []FactorScore `json:"factors"`
	Listings  []Listing     `json:"listings,omitempty"`
}
