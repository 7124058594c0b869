package truth

import (
	"fmt"
	"strings"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// Compliance thresholds.
const (
	// minConfidence below which an action is non-compliant.
	minConfidence = 0.5
	// minMeanReliability below which cited sources are non-compliant.
	minMeanReliability = 0.5
	// disclaimerConfidenceCeiling: confidences in [minConfidence, this)
	// get a disclaimer but remain compliant.
	disclaimerConfidenceCeiling = 0.7
)

// hedgeWords in the reasoning trigger an uncertainty disclaimer.
var hedgeWords = []string{"might", "possibly", "perhaps", "unclear", "uncertain"}

// Report is the outcome of validating a persisted action.
type Report struct {
	// Compliant is false when any issue was raised.
	Compliant bool
	// Issues are compliance failures (low confidence, unreliable sources).
	Issues []string
	// Disclaimers are non-blocking notices for reviewers.
	Disclaimers []string
}

// Validate audits a persisted action for truth compliance. Issues mark the
// action non-compliant; disclaimers only annotate it.
func Validate(a action.Action) Report {
	var rep Report

	if a.Confidence < minConfidence {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("confidence %.2f is below the %.1f compliance floor", a.Confidence, minConfidence))
	} else if a.Confidence < disclaimerConfidenceCeiling {
		rep.Disclaimers = append(rep.Disclaimers,
			fmt.Sprintf("Moderate confidence (%.2f); verify before relying on this action.", a.Confidence))
	}

	if len(a.DataSources) > 0 {
		var sum float64
		for _, s := range a.DataSources {
			sum += s.Reliability
		}
		if mean := sum / float64(len(a.DataSources)); mean < minMeanReliability {
			rep.Issues = append(rep.Issues,
				fmt.Sprintf("mean data-source reliability %.2f is below %.1f", mean, minMeanReliability))
		}
	}

	for _, s := range a.DataSources {
		recency := strings.ToLower(s.Recency)
		if strings.Contains(recency, "day") || strings.Contains(recency, "week") {
			rep.Disclaimers = append(rep.Disclaimers,
				fmt.Sprintf("Source %q is not current (%s).", s.Name, s.Recency))
			break
		}
	}

	if a.RiskLevel == risk.LevelHigh {
		rep.Disclaimers = append(rep.Disclaimers,
			"High-risk action; human review is strongly recommended.")
	}

	lower := strings.ToLower(a.Reasoning)
	for _, w := range hedgeWords {
		if strings.Contains(lower, w) {
			rep.Disclaimers = append(rep.Disclaimers,
				"The planner's reasoning expresses uncertainty.")
			break
		}
	}

	rep.Compliant = len(rep.Issues) == 0
	return rep
}

// Score rates an action's truth compliance on a 0-100 scale:
// 40% confidence, 30% mean source reliability, 20% reasoning depth,
// 10% bonus when confidence meets the floor appropriate to the risk level
// (low: any, medium: >=0.6, high: >=0.8).
func Score(a action.Action) int {
	score := a.Confidence * 40

	if len(a.DataSources) > 0 {
		var sum float64
		for _, s := range a.DataSources {
			sum += s.Reliability
		}
		score += sum / float64(len(a.DataSources)) * 30
	}

	switch n := len(a.Reasoning); {
	case n >= 100:
		score += 20
	case n >= 50:
		score += 15
	case n >= 20:
		score += 10
	default:
		score += 5
	}

	if confidenceMeetsRiskFloor(a.Confidence, a.RiskLevel) {
		score += 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

// confidenceMeetsRiskFloor reports whether the confidence is appropriate
// for the action's risk level.
func confidenceMeetsRiskFloor(confidence float64, level risk.Level) bool {
	switch level {
	case risk.LevelMedium:
		return confidence >= 0.6
	case risk.LevelHigh:
		return confidence >= 0.8
	default:
		return true
	}
}
