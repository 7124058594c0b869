package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// SystemDefault returns the hard-coded fallback policy used when neither a
// client-specific nor a workspace-default row exists. It is conservative:
// auto-execution is capped at low risk and notifications require an
// explicit opt-in via an operator-saved policy.
func SystemDefault(workspaceID string) AgentPolicy {
	return AgentPolicy{
		WorkspaceID: workspaceID,
		Enabled:     true,
		AllowedActions: []proposal.ActionKind{
			proposal.KindAddTag,
			proposal.KindRemoveTag,
			proposal.KindUpdateStatus,
			proposal.KindUpdateScore,
			proposal.KindCreateNote,
			proposal.KindScheduleTask,
			proposal.KindSendFollowup,
			proposal.KindGenerateContent,
		},
		AutoExecute:                true,
		AutoExecuteMaxRisk:         risk.LevelLow,
		MaxActionsPerDay:           10,
		RequireApprovalAboveScore:  70,
		RespectEarlyWarnings:       true,
		PauseOnHighSeverityWarning: true,
	}
}

// Resolver resolves the effective policy for a (workspace, client) pair.
type Resolver struct {
	store  PolicyStore
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store PolicyStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the effective policy for the scope. Lookup order:
// client-specific row, then workspace-default row, then SystemDefault.
// A client-specific row fully overrides the workspace default; there is
// no field-level merge. "Not found" never surfaces: the system default
// always resolves. Store failures other than ErrPolicyNotFound propagate.
func (r *Resolver) Resolve(ctx context.Context, workspaceID, clientID string) (AgentPolicy, error) {
	if clientID != "" {
		p, err := r.store.Get(ctx, workspaceID, clientID)
		if err == nil {
			return *p, nil
		}
		if !errors.Is(err, ErrPolicyNotFound) {
			return AgentPolicy{}, fmt.Errorf("resolve client policy: %w", err)
		}
	}

	p, err := r.store.Get(ctx, workspaceID, "")
	if err == nil {
		return *p, nil
	}
	if !errors.Is(err, ErrPolicyNotFound) {
		return AgentPolicy{}, fmt.Errorf("resolve workspace policy: %w", err)
	}

	r.logger.Debug("no policy rows for scope, using system default",
		"workspace_id", workspaceID,
		"client_id", clientID,
	)
	return SystemDefault(workspaceID), nil
}
