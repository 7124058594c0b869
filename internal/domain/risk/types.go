// Package risk computes a quantified risk assessment for proposed actions.
// Assessment is a pure function of its inputs: no clock, no randomness,
// no store access. That keeps the scoring path deterministic for audit
// replay and tests.
package risk

// Level is the coarse risk bucket derived from the numeric score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ordinal returns the comparison rank for a level. Unknown levels rank
// highest so a corrupted value never widens the auto-execution window.
func (l Level) ordinal() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	default:
		return 3
	}
}

// AtMost reports whether l is at or below ceiling in the order
// low < medium < high.
func (l Level) AtMost(ceiling Level) bool {
	return l.ordinal() <= ceiling.ordinal()
}

// IsValid reports whether l is a known risk level.
func (l Level) IsValid() bool {
	return l == LevelLow || l == LevelMedium || l == LevelHigh
}

// Factor is one additive contribution to a risk score, kept for audit display.
type Factor struct {
	// Name identifies the factor (e.g., "base_risk", "high_value_client").
	Name string `json:"name"`
	// Weight is the factor's contribution to the score.
	Weight float64 `json:"weight"`
	// Description explains the factor in human terms.
	Description string `json:"description"`
}

// Assessment is the result of scoring one proposal against one context.
type Assessment struct {
	// Score is the clamped additive risk score in [0,1].
	Score float64 `json:"score"`
	// Level is the bucketed score: <=0.30 low, <=0.60 medium, else high.
	Level Level `json:"level"`
	// Factors are the contributions that produced the score.
	Factors []Factor `json:"factors"`
}
