// Package guardrail runs the admission checks that gate every proposed
// action: policy membership, risk, daily rate limit, early warnings,
// truth compliance, and operator-authored guard rules.
package guardrail

import (
	"context"

	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// Severity classifies a check outcome. The two-tier model is deliberate:
// warnings let execution proceed to human review, blocks are hard stops.
type Severity string

const (
	// SeverityBlock is a hard stop regardless of policy.
	SeverityBlock Severity = "block"
	// SeverityWarn signals "needs human approval", not "forbidden".
	SeverityWarn Severity = "warn"
	// SeverityInfo annotates the decision without affecting it.
	SeverityInfo Severity = "info"
)

// Check names, stable for audit records and metrics labels.
const (
	CheckPolicy       = "policy"
	CheckRisk         = "risk"
	CheckRateLimit    = "rate_limit"
	CheckEarlyWarning = "early_warning"
	CheckTruth        = "truth"
	CheckGuardRules   = "guard_rules"
)

// CheckResult is the outcome of one independent guardrail check.
type CheckResult struct {
	// Name identifies the check.
	Name string `json:"name"`
	// Passed is true when the check found nothing to report.
	Passed bool `json:"passed"`
	// Severity is meaningful when Passed is false.
	Severity Severity `json:"severity,omitempty"`
	// Reason explains a non-passing outcome.
	Reason string `json:"reason,omitempty"`
}

// Decision aggregates all check results for one proposal.
type Decision struct {
	// Allowed is true iff no check reported SeverityBlock.
	Allowed bool `json:"allowed"`
	// RequiresApproval is true when a guard rule or warning-tier check
	// demands human review even though the proposal is allowed.
	RequiresApproval bool `json:"requires_approval"`
	// Checks holds every check outcome in evaluation order.
	Checks []CheckResult `json:"checks"`
	// RiskAssessment is the inline risk computation used by the risk check.
	RiskAssessment risk.Assessment `json:"risk_assessment"`
	// Message concatenates blocking reasons if any, else warning reasons,
	// else "All checks passed."
	Message string `json:"message"`
}

// FailedChecks returns "name:severity" strings for every non-passing check,
// in evaluation order. Used by audit records.
func (d Decision) FailedChecks() []string {
	var failed []string
	for _, c := range d.Checks {
		if !c.Passed {
			failed = append(failed, c.Name+":"+string(c.Severity))
		}
	}
	return failed
}

// GuardInput is the variable set exposed to guard-rule expressions.
type GuardInput struct {
	Kind         string
	Payload      map[string]any
	Confidence   float64
	RiskScore    float64
	RiskLevel    string
	WarningCount int
	ClientScore  int
}

// RuleEvaluator evaluates an operator-authored guard rule against a
// proposal. Implementations compile the rule's CEL condition; any compile
// or evaluation failure must be returned as an error so the engine can
// fail closed.
type RuleEvaluator interface {
	EvaluateRule(ctx context.Context, rule policy.GuardRule, input GuardInput) (bool, error)
}
