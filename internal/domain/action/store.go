package action

import (
	"context"
	"errors"
	"time"
)

// ErrActionNotFound is returned by stores when no action matches the id.
var ErrActionNotFound = errors.New("action not found")

// ActionStore persists action records and the read projections the
// guardrails and approval surfaces need.
type ActionStore interface {
	// Insert persists a new action.
	Insert(ctx context.Context, a *Action) error

	// Get returns an action by id, or ErrActionNotFound.
	Get(ctx context.Context, id string) (*Action, error)

	// Update replaces a persisted action.
	// Returns ErrActionNotFound when the id is unknown.
	Update(ctx context.Context, a *Action) error

	// CountExecutedToday counts actions with an executed status
	// (auto_executed or approved_executed) created since the current UTC
	// day boundary, scoped to the client when clientID is non-empty and
	// to the whole workspace otherwise. Feeds the daily rate limit.
	CountExecutedToday(ctx context.Context, workspaceID, clientID string) (int, error)

	// ListPending returns awaiting_approval actions for a workspace,
	// oldest first.
	ListPending(ctx context.Context, workspaceID string) ([]Action, error)

	// ListBySession returns all actions logged in a session, oldest first.
	ListBySession(ctx context.Context, sessionID string) ([]Action, error)

	// ListByClient returns the most recent actions for a client, newest
	// first, capped at limit.
	ListByClient(ctx context.Context, workspaceID, clientID string, limit int) ([]Action, error)

	// ListPendingOlderThan returns awaiting_approval actions created
	// before cutoff, oldest first. Feeds the staleness query.
	ListPendingOlderThan(ctx context.Context, workspaceID string, cutoff time.Time) ([]Action, error)
}
