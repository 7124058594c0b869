package risk

import (
	"fmt"

	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// Additive adjustments on top of the base-risk table.
const (
	highValueClientWeight = 0.15
	highSeverityWeight    = 0.20
	lowConfidenceWeight   = 0.10

	// highValueScoreFloor is the profile score at which a client counts
	// as high value.
	highValueScoreFloor = 80

	// lowConfidenceCeiling is the confidence below which the planner's
	// own uncertainty adds risk.
	lowConfidenceCeiling = 0.6

	// unknownKindBaseRisk applies to action kinds missing from the table.
	unknownKindBaseRisk = 0.50
)

// Score bucket boundaries.
const (
	lowCeiling    = 0.30
	mediumCeiling = 0.60
)

// baseRisk maps each action kind to its inherent risk weight.
var baseRisk = map[proposal.ActionKind]float64{
	proposal.KindAddTag:          0.10,
	proposal.KindCreateNote:      0.10,
	proposal.KindRemoveTag:       0.15,
	proposal.KindUpdateStatus:    0.20,
	proposal.KindUpdateScore:     0.25,
	proposal.KindScheduleTask:    0.30,
	proposal.KindGenerateContent: 0.35,
	proposal.KindSendFollowup:    0.50,
	proposal.KindSendNotify:      0.60,
}

// BucketScore maps a numeric score to its level.
func BucketScore(score float64) Level {
	switch {
	case score <= lowCeiling:
		return LevelLow
	case score <= mediumCeiling:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Assess scores a proposal against a client context snapshot.
// The score is the clamped sum of the base risk for the action kind plus
// adjustments for high-value clients, active high-severity warnings, and
// low planner confidence. Every contribution is recorded as a Factor.
func Assess(p proposal.ActionProposal, snap agentctx.Snapshot) Assessment {
	base, known := baseRisk[p.Kind]
	if !known {
		base = unknownKindBaseRisk
	}

	factors := []Factor{{
		Name:        "base_risk",
		Weight:      base,
		Description: fmt.Sprintf("inherent risk of %s actions", p.Kind),
	}}
	score := base

	if snap.ClientProfile != nil && snap.ClientProfile.Score >= highValueScoreFloor {
		factors = append(factors, Factor{
			Name:        "high_value_client",
			Weight:      highValueClientWeight,
			Description: fmt.Sprintf("client score %d is at or above %d", snap.ClientProfile.Score, highValueScoreFloor),
		})
		score += highValueClientWeight
	}

	if snap.HasActiveHighSeverity() {
		factors = append(factors, Factor{
			Name:        "high_severity_warning",
			Weight:      highSeverityWeight,
			Description: "client has an active high-severity early warning",
		})
		score += highSeverityWeight
	}

	if p.Confidence != nil && *p.Confidence < lowConfidenceCeiling {
		factors = append(factors, Factor{
			Name:        "low_confidence",
			Weight:      lowConfidenceWeight,
			Description: fmt.Sprintf("planner confidence %.2f is below %.1f", *p.Confidence, lowConfidenceCeiling),
		})
		score += lowConfidenceWeight
	}

	if score > 1.0 {
		score = 1.0
	}

	return Assessment{
		Score:   score,
		Level:   BucketScore(score),
		Factors: factors,
	}
}
