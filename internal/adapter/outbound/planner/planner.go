// Package planner holds the proposal-generation boundary. The agent core
// never trusts planner output; everything returned here still passes the
// guardrail engine before it can touch a record.
package planner

import (
	"context"

	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// PlanRequest carries everything a planner may consider for one client.
type PlanRequest struct {
	WorkspaceID string
	ClientID    string
	// Snapshot is the read-only client context.
	Snapshot agentctx.Snapshot
	// Instruction is the operator or conversation prompt, empty for
	// scheduled evaluation runs.
	Instruction string
	// AllowedKinds restricts what the planner may propose. Proposals
	// outside this set are dropped before they reach the caller.
	AllowedKinds []proposal.ActionKind
}

// PlanResponse is what a planner produced for one request.
type PlanResponse struct {
	// Message is the planner's human-readable summary of its reasoning.
	Message string
	// Proposals are candidate actions, unvalidated and unadmitted.
	Proposals []proposal.ActionProposal
	// ReasoningTrace preserves the raw planner reasoning for the session log.
	ReasoningTrace string
}

// Planner produces action proposals from client context.
//
// Implementations must degrade rather than fail: a broken upstream returns
// an empty proposal list and an explanatory message, not an error, so one
// client cannot abort a cohort run.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResponse, error)
}

// kindAllowed reports whether k is in the request's allowed set. An empty
// set allows every valid kind.
func kindAllowed(req PlanRequest, k proposal.ActionKind) bool {
	if !k.IsValid() {
		return false
	}
	if len(req.AllowedKinds) == 0 {
		return true
	}
	for _, allowed := range req.AllowedKinds {
		if allowed == k {
			return true
		}
	}
	return false
}
