package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by stores when no session matches the id.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions.
type SessionStore interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get returns a session by id, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Update replaces a persisted session.
	// Returns ErrSessionNotFound when the id is unknown.
	Update(ctx context.Context, s *Session) error

	// ListByWorkspace returns the most recent sessions for a workspace,
	// newest first, capped at limit.
	ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]Session, error)
}
