// Package policy contains domain types for agent execution policies and
// their resolution across workspace and client scopes.
package policy

import (
	"time"

	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// GuardEffect is what a matching guard rule does to a proposal.
type GuardEffect string

const (
	// GuardEffectBlock hard-stops the proposal.
	GuardEffectBlock GuardEffect = "block"
	// GuardEffectRequireApproval forces the proposal to human review.
	GuardEffectRequireApproval GuardEffect = "require_approval"
	// GuardEffectWarn annotates the decision without affecting it.
	GuardEffectWarn GuardEffect = "warn"
)

// GuardRule is an operator-authored CEL condition evaluated against each
// proposal in addition to the built-in guardrail checks. A rule whose
// expression fails to compile or evaluate blocks the proposal (fail closed).
type GuardRule struct {
	// Name is a human-readable identifier shown in decisions and audit.
	Name string `json:"name" validate:"required"`
	// Condition is a CEL expression over the proposal and context
	// (e.g., `kind == "send_followup" && client_score > 90`).
	Condition string `json:"condition" validate:"required,max=1024"`
	// Effect is applied when the condition evaluates to true.
	Effect GuardEffect `json:"effect" validate:"required,oneof=block require_approval warn"`
}

// AgentPolicy governs what the agent may do for one (workspace, client)
// scope. A client-specific policy fully overrides the workspace default;
// there is no field-level merge.
type AgentPolicy struct {
	// WorkspaceID scopes the policy.
	WorkspaceID string `json:"workspace_id"`
	// ClientID narrows the policy to one client. Empty means this is the
	// workspace default row.
	ClientID string `json:"client_id,omitempty"`
	// Enabled gates the agent entirely for this scope.
	Enabled bool `json:"enabled"`
	// AllowedActions is the set of action kinds the agent may propose.
	AllowedActions []proposal.ActionKind `json:"allowed_actions"`
	// AutoExecute permits execution without human approval.
	AutoExecute bool `json:"auto_execute"`
	// AutoExecuteMaxRisk is the highest risk level eligible for
	// auto-execution when AutoExecute is on.
	AutoExecuteMaxRisk risk.Level `json:"auto_execute_max_risk"`
	// MaxActionsPerDay caps executed actions per rolling UTC day.
	MaxActionsPerDay int `json:"max_actions_per_day"`
	// RequireApprovalAboveScore forces human review when the action's
	// truth-compliance score falls below this threshold (0-100).
	RequireApprovalAboveScore int `json:"require_approval_above_score"`
	// RespectEarlyWarnings makes active warnings influence guardrails.
	RespectEarlyWarnings bool `json:"respect_early_warnings"`
	// PauseOnHighSeverityWarning flags proposals for review while any
	// high-severity warning is active.
	PauseOnHighSeverityWarning bool `json:"pause_on_high_severity_warning"`
	// GuardRules are optional operator-authored CEL conditions.
	GuardRules []GuardRule `json:"guard_rules,omitempty"`

	// CreatedAt is when the policy row was created (UTC).
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the policy row was last modified (UTC).
	UpdatedAt time.Time `json:"updated_at"`
	// UpdatedBy is the operator who last modified the row.
	UpdatedBy string `json:"updated_by,omitempty"`
}

// IsActionAllowed reports whether the policy permits proposals of kind k.
// A disabled policy allows nothing.
func (p AgentPolicy) IsActionAllowed(k proposal.ActionKind) bool {
	if !p.Enabled {
		return false
	}
	for _, allowed := range p.AllowedActions {
		if allowed == k {
			return true
		}
	}
	return false
}

// CanAutoExecute reports whether an action at the given risk level may run
// without human approval under this policy.
func (p AgentPolicy) CanAutoExecute(level risk.Level) bool {
	if !p.AutoExecute {
		return false
	}
	return level.AtMost(p.AutoExecuteMaxRisk)
}

// IsClientSpecific reports whether this row targets a single client.
func (p AgentPolicy) IsClientSpecific() bool {
	return p.ClientID != ""
}
