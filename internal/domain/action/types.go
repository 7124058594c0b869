package action

import (
	"context"
	"time"

	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// Handler executes one kind of action against the backing system. A
// returned error marks the action execution_failed; handlers should
// prefer returning an unsuccessful ExecutionResult for expected
// validation failures.
type Handler func(ctx context.Context, a *Action) (ExecutionResult, error)

// ExecutionMode records how an action reached execution.
type ExecutionMode string

const (
	// ModeAuto means guardrails and policy permitted unattended execution.
	ModeAuto ExecutionMode = "auto"
	// ModeManual means a human approved the action before execution.
	ModeManual ExecutionMode = "manual"
	// ModeOverride means an operator forced execution past a guardrail.
	ModeOverride ExecutionMode = "override"
)

// ExecutionResult is the outcome of dispatching an action to its handler.
type ExecutionResult struct {
	// Success is false for both validation failures and handler errors.
	Success bool `json:"success"`
	// Message describes the outcome in human terms.
	Message string `json:"message"`
	// AffectedRecords lists the CRM record ids the handler touched.
	AffectedRecords []string `json:"affected_records,omitempty"`
}

// Action is the durable record of a proposal after admission.
//
// Invariant: ExecutedAt and ExecutionResult are set iff Status is
// auto_executed, approved_executed, or execution_failed.
type Action struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	WorkspaceID string `json:"workspace_id"`
	// ClientID is empty for workspace-scoped actions.
	ClientID string `json:"client_id,omitempty"`

	Kind    proposal.ActionKind `json:"kind"`
	Payload map[string]any      `json:"payload,omitempty"`

	RiskLevel   risk.Level    `json:"risk_level"`
	RiskScore   float64       `json:"risk_score"`
	RiskFactors []risk.Factor `json:"risk_factors,omitempty"`

	Status ApprovalStatus `json:"status"`
	// ApprovedBy is set for approved_executed and rejected actions.
	ApprovedBy string `json:"approved_by,omitempty"`
	// ApprovedAt stamps the human decision, approval or rejection.
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	// RejectionReason is stored only for rejected actions.
	RejectionReason string `json:"rejection_reason,omitempty"`

	ExecutedAt      *time.Time       `json:"executed_at,omitempty"`
	ExecutionResult *ExecutionResult `json:"execution_result,omitempty"`
	Mode            ExecutionMode    `json:"mode"`

	// TruthCompliant is the result of post-persistence truth validation.
	TruthCompliant bool `json:"truth_compliant"`
	// Disclaimers are the human-readable notices attached by the truth
	// adapter and validator.
	Disclaimers []string `json:"disclaimers,omitempty"`

	Confidence  float64               `json:"confidence"`
	DataSources []proposal.DataSource `json:"data_sources,omitempty"`
	// TriggeringWarningID links the action to the early warning that
	// prompted it, when there was one.
	TriggeringWarningID string `json:"triggering_warning_id,omitempty"`
	Reasoning           string `json:"reasoning"`

	CreatedAt time.Time `json:"created_at"`
}
