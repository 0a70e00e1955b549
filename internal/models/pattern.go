package models

type PatternType string

const (
	PatternStructuring    PatternType = "structuring"
	PatternVelocity       PatternType = "velocity"
	PatternJurisdictional PatternType = "jurisdictional"
	PatternRoundTripping  PatternType = "round_tripping"
	PatternLayering       PatternType = "layering"
)

// DetectedPattern is per-decision evidence of a behavioral anomaly in the
// historical window. Confidence is in [0,1], RiskMultiplier in [0,10]; the
// verdict contribution is their product.
type DetectedPattern struct {
	PatternType    PatternType       `json:"pattern_type"`
	Confidence     float64           `json:"confidence"`
	RiskMultiplier float64           `json:"risk_multiplier"`
	Description    string            `json:"description"`
	// Evidence lists the transaction ids supporting the pattern, in the
	// order the detector walked them.
	Evidence []string `json:"evidence"`
}
