package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wardenlabs/warden/internal/domain/session"
)

// MemorySessionStore implements session.SessionStore with an in-memory map.
type MemorySessionStore struct {
	sessions map[string]*session.Session
	mu       sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*session.Session),
	}
}

// Create persists a new session.
func (s *MemorySessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Get returns a session by id.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Update replaces a persisted session.
func (s *MemorySessionStore) Update(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// ListByWorkspace returns the most recent sessions for a workspace,
// newest first, capped at limit.
func (s *MemorySessionStore) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []session.Session
	for _, sess := range s.sessions {
		if sess.WorkspaceID == workspaceID {
			result = append(result, *copySession(sess))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// copySession creates a deep copy of a session.
func copySession(sess *session.Session) *session.Session {
	cp := *sess
	cp.Messages = append([]session.Message(nil), sess.Messages...)
	if sess.EndedAt != nil {
		t := *sess.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

// Compile-time interface verification.
var _ session.SessionStore = (*MemorySessionStore)(nil)
