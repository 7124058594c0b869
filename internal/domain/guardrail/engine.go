package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// Rate-limit warn threshold as a fraction of the daily cap.
const rateWarnFraction = 0.8

// maxActiveWarnings above which the early-warning check warns regardless
// of severity.
const maxActiveWarnings = 3

// Truth-check thresholds.
const (
	minCheckConfidence  = 0.5
	minCheckReliability = 0.5
)

// Engine runs the guardrail checks. Only the rate-limit check touches the
// store; every other check is a pure function of its inputs.
type Engine struct {
	actions action.ActionStore
	rules   RuleEvaluator
	logger  *slog.Logger
}

// NewEngine creates a guardrail engine. rules may be nil, in which case
// policies carrying guard rules fail closed.
func NewEngine(actions action.ActionStore, rules RuleEvaluator, logger *slog.Logger) *Engine {
	return &Engine{actions: actions, rules: rules, logger: logger}
}

// Check evaluates a proposal against all guardrails and aggregates the
// outcome. The proposal is expected to have passed truth.Adapt first, so
// confidence is always set. The only error path is a store failure during
// the rate-limit count; check outcomes themselves are never errors.
func (e *Engine) Check(ctx context.Context, p proposal.ActionProposal, pol policy.AgentPolicy, snap agentctx.Snapshot, workspaceID, clientID string) (Decision, error) {
	assessment := risk.Assess(p, snap)

	rateCheck, err := e.checkRateLimit(ctx, pol, workspaceID, clientID)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}

	checks := []CheckResult{
		checkPolicy(p, pol),
		checkRisk(pol, assessment),
		rateCheck,
		checkEarlyWarning(pol, snap),
		checkTruth(p),
	}

	requiresApproval := false
	if len(pol.GuardRules) > 0 {
		ruleCheck, ruleApproval := e.checkGuardRules(ctx, p, pol, snap, assessment)
		checks = append(checks, ruleCheck)
		requiresApproval = ruleApproval
	}

	return aggregate(checks, assessment, requiresApproval), nil
}

// checkPolicy blocks when the agent is disabled or the kind is not allowed.
func checkPolicy(p proposal.ActionProposal, pol policy.AgentPolicy) CheckResult {
	if !pol.Enabled {
		return CheckResult{
			Name:     CheckPolicy,
			Severity: SeverityBlock,
			Reason:   "agent is disabled for this scope",
		}
	}
	if !pol.IsActionAllowed(p.Kind) {
		return CheckResult{
			Name:     CheckPolicy,
			Severity: SeverityBlock,
			Reason:   fmt.Sprintf("action kind %s is not in the allowed set", p.Kind),
		}
	}
	return CheckResult{Name: CheckPolicy, Passed: true}
}

// checkRisk warns on high risk or when auto-execution is not permitted for
// the assessed level. This check never blocks: it signals "needs human
// approval", not "forbidden".
func checkRisk(pol policy.AgentPolicy, assessment risk.Assessment) CheckResult {
	if assessment.Level == risk.LevelHigh {
		return CheckResult{
			Name:     CheckRisk,
			Severity: SeverityWarn,
			Reason:   fmt.Sprintf("risk level is high (score %.2f)", assessment.Score),
		}
	}
	if !pol.CanAutoExecute(assessment.Level) {
		return CheckResult{
			Name:     CheckRisk,
			Severity: SeverityWarn,
			Reason:   fmt.Sprintf("%s risk exceeds the auto-execution ceiling", assessment.Level),
		}
	}
	return CheckResult{Name: CheckRisk, Passed: true}
}

// checkRateLimit counts today's executed actions for the scope and blocks
// at the cap, warning at 80% of it. The count-then-insert window is
// best-effort; the evaluation loop serializes per workspace.
func (e *Engine) checkRateLimit(ctx context.Context, pol policy.AgentPolicy, workspaceID, clientID string) (CheckResult, error) {
	if pol.MaxActionsPerDay <= 0 {
		return CheckResult{Name: CheckRateLimit, Passed: true}, nil
	}

	count, err := e.actions.CountExecutedToday(ctx, workspaceID, clientID)
	if err != nil {
		return CheckResult{}, err
	}

	if count >= pol.MaxActionsPerDay {
		return CheckResult{
			Name:     CheckRateLimit,
			Severity: SeverityBlock,
			Reason:   fmt.Sprintf("daily action limit reached (%d of %d)", count, pol.MaxActionsPerDay),
		}, nil
	}
	if float64(count) >= rateWarnFraction*float64(pol.MaxActionsPerDay) {
		return CheckResult{
			Name:     CheckRateLimit,
			Severity: SeverityWarn,
			Reason:   fmt.Sprintf("approaching daily action limit (%d of %d)", count, pol.MaxActionsPerDay),
		}, nil
	}
	return CheckResult{Name: CheckRateLimit, Passed: true}, nil
}

// checkEarlyWarning warns (never blocks) on active high-severity warnings
// when the policy pauses on them, and on warning volume.
func checkEarlyWarning(pol policy.AgentPolicy, snap agentctx.Snapshot) CheckResult {
	if !pol.RespectEarlyWarnings {
		return CheckResult{Name: CheckEarlyWarning, Passed: true}
	}

	if pol.PauseOnHighSeverityWarning && snap.HasActiveHighSeverity() {
		return CheckResult{
			Name:     CheckEarlyWarning,
			Severity: SeverityWarn,
			Reason:   "active high-severity warning pauses autonomous execution",
		}
	}
	if n := snap.ActiveCount(); n > maxActiveWarnings {
		return CheckResult{
			Name:     CheckEarlyWarning,
			Severity: SeverityWarn,
			Reason:   fmt.Sprintf("%d active warnings exceed the %d-warning threshold", n, maxActiveWarnings),
		}
	}
	return CheckResult{Name: CheckEarlyWarning, Passed: true}
}

// checkTruth blocks on low confidence or unreliable citations, and notes
// missing citations at info severity.
func checkTruth(p proposal.ActionProposal) CheckResult {
	if p.Confidence != nil && *p.Confidence < minCheckConfidence {
		return CheckResult{
			Name:     CheckTruth,
			Severity: SeverityBlock,
			Reason:   fmt.Sprintf("confidence %.2f is below the %.1f execution floor", *p.Confidence, minCheckConfidence),
		}
	}

	mean, cited := p.MeanSourceReliability()
	if !cited {
		return CheckResult{
			Name:     CheckTruth,
			Severity: SeverityInfo,
			Reason:   "no data sources cited",
		}
	}
	if mean < minCheckReliability {
		return CheckResult{
			Name:     CheckTruth,
			Severity: SeverityBlock,
			Reason:   fmt.Sprintf("mean data-source reliability %.2f is below %.1f", mean, minCheckReliability),
		}
	}
	return CheckResult{Name: CheckTruth, Passed: true}
}

// checkGuardRules evaluates operator-authored CEL rules. A rule that
// matches applies its effect; a rule that fails to compile or evaluate
// blocks (fail closed). Returns the combined check result and whether any
// matching rule demands human approval.
func (e *Engine) checkGuardRules(ctx context.Context, p proposal.ActionProposal, pol policy.AgentPolicy, snap agentctx.Snapshot, assessment risk.Assessment) (CheckResult, bool) {
	input := GuardInput{
		Kind:         string(p.Kind),
		Payload:      p.Payload,
		Confidence:   p.ConfidenceOr(0),
		RiskScore:    assessment.Score,
		RiskLevel:    string(assessment.Level),
		WarningCount: snap.ActiveCount(),
	}
	if snap.ClientProfile != nil {
		input.ClientScore = snap.ClientProfile.Score
	}

	var (
		blockReasons  []string
		warnReasons   []string
		needsApproval bool
	)
	for _, rule := range pol.GuardRules {
		if e.rules == nil {
			blockReasons = append(blockReasons, fmt.Sprintf("guard rule %q has no evaluator", rule.Name))
			continue
		}
		matched, err := e.rules.EvaluateRule(ctx, rule, input)
		if err != nil {
			e.logger.Warn("guard rule evaluation failed, blocking",
				"rule", rule.Name, "error", err)
			blockReasons = append(blockReasons, fmt.Sprintf("guard rule %q failed to evaluate", rule.Name))
			continue
		}
		if !matched {
			continue
		}
		switch rule.Effect {
		case policy.GuardEffectBlock:
			blockReasons = append(blockReasons, fmt.Sprintf("guard rule %q matched", rule.Name))
		case policy.GuardEffectRequireApproval:
			needsApproval = true
			warnReasons = append(warnReasons, fmt.Sprintf("guard rule %q requires approval", rule.Name))
		default:
			warnReasons = append(warnReasons, fmt.Sprintf("guard rule %q matched", rule.Name))
		}
	}

	switch {
	case len(blockReasons) > 0:
		return CheckResult{
			Name:     CheckGuardRules,
			Severity: SeverityBlock,
			Reason:   strings.Join(blockReasons, "; "),
		}, needsApproval
	case len(warnReasons) > 0:
		return CheckResult{
			Name:     CheckGuardRules,
			Severity: SeverityWarn,
			Reason:   strings.Join(warnReasons, "; "),
		}, needsApproval
	default:
		return CheckResult{Name: CheckGuardRules, Passed: true}, false
	}
}

// aggregate folds check results into a decision. Allowed iff no block.
func aggregate(checks []CheckResult, assessment risk.Assessment, requiresApproval bool) Decision {
	var blockReasons, warnReasons []string
	for _, c := range checks {
		if c.Passed {
			continue
		}
		switch c.Severity {
		case SeverityBlock:
			blockReasons = append(blockReasons, c.Reason)
		case SeverityWarn:
			warnReasons = append(warnReasons, c.Reason)
		}
	}

	d := Decision{
		Allowed:          len(blockReasons) == 0,
		RequiresApproval: requiresApproval,
		Checks:           checks,
		RiskAssessment:   assessment,
	}
	switch {
	case len(blockReasons) > 0:
		d.Message = strings.Join(blockReasons, "; ")
	case len(warnReasons) > 0:
		d.Message = strings.Join(warnReasons, "; ")
	default:
		d.Message = "All checks passed."
	}
	return d
}
