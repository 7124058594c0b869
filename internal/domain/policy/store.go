package policy

import (
	"context"
	"errors"
)

// ErrPolicyNotFound is returned by stores when no row matches the scope.
// The resolver converts it into a fallback, never an error for callers.
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyStore persists policy rows keyed by (workspace, client) scope.
type PolicyStore interface {
	// Get returns the policy row for the exact scope. ClientID may be
	// empty to address the workspace default row.
	// Returns ErrPolicyNotFound when no row exists for the scope.
	Get(ctx context.Context, workspaceID, clientID string) (*AgentPolicy, error)

	// Save creates or replaces the policy row for its scope.
	Save(ctx context.Context, p *AgentPolicy) error

	// Delete removes the policy row for the scope.
	// Returns ErrPolicyNotFound when no row exists.
	Delete(ctx context.Context, workspaceID, clientID string) error

	// ListWorkspace returns all policy rows for a workspace, the default
	// row included.
	ListWorkspace(ctx context.Context, workspaceID string) ([]AgentPolicy, error)
}
