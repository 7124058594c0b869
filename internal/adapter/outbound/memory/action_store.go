package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// MemoryActionStore implements action.ActionStore with an in-memory map.
type MemoryActionStore struct {
	actions map[string]*action.Action
	mu      sync.RWMutex

	// now is injectable for rate-limit boundary tests.
	now func() time.Time
}

// NewActionStore creates a new in-memory action store.
func NewActionStore() *MemoryActionStore {
	return &MemoryActionStore{
		actions: make(map[string]*action.Action),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's clock. For tests.
func (s *MemoryActionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Insert persists a new action.
func (s *MemoryActionStore) Insert(ctx context.Context, a *action.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions[a.ID] = copyAction(a)
	return nil
}

// Get returns an action by id.
func (s *MemoryActionStore) Get(ctx context.Context, id string) (*action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.actions[id]
	if !ok {
		return nil, action.ErrActionNotFound
	}
	return copyAction(a), nil
}

// Update replaces a persisted action.
func (s *MemoryActionStore) Update(ctx context.Context, a *action.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actions[a.ID]; !ok {
		return action.ErrActionNotFound
	}
	s.actions[a.ID] = copyAction(a)
	return nil
}

// CountExecutedToday counts executed actions since the current UTC day
// boundary, scoped to the client when clientID is non-empty.
func (s *MemoryActionStore) CountExecutedToday(ctx context.Context, workspaceID, clientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count := 0
	for _, a := range s.actions {
		if a.WorkspaceID != workspaceID {
			continue
		}
		if clientID != "" && a.ClientID != clientID {
			continue
		}
		if !a.Status.IsExecuted() {
			continue
		}
		if a.CreatedAt.Before(dayStart) {
			continue
		}
		count++
	}
	return count, nil
}

// ListPending returns awaiting_approval actions for a workspace, oldest first.
func (s *MemoryActionStore) ListPending(ctx context.Context, workspaceID string) ([]action.Action, error) {
	return s.list(func(a *action.Action) bool {
		return a.WorkspaceID == workspaceID && a.Status == action.StatusAwaitingApproval
	}, false, 0)
}

// ListBySession returns all actions logged in a session, oldest first.
func (s *MemoryActionStore) ListBySession(ctx context.Context, sessionID string) ([]action.Action, error) {
	return s.list(func(a *action.Action) bool {
		return a.SessionID == sessionID
	}, false, 0)
}

// ListByClient returns the most recent actions for a client, newest first.
func (s *MemoryActionStore) ListByClient(ctx context.Context, workspaceID, clientID string, limit int) ([]action.Action, error) {
	return s.list(func(a *action.Action) bool {
		return a.WorkspaceID == workspaceID && a.ClientID == clientID
	}, true, limit)
}

// ListPendingOlderThan returns awaiting_approval actions created before
// cutoff, oldest first.
func (s *MemoryActionStore) ListPendingOlderThan(ctx context.Context, workspaceID string, cutoff time.Time) ([]action.Action, error) {
	return s.list(func(a *action.Action) bool {
		return a.WorkspaceID == workspaceID &&
			a.Status == action.StatusAwaitingApproval &&
			a.CreatedAt.Before(cutoff)
	}, false, 0)
}

// list filters, sorts by creation time, and optionally caps the result.
func (s *MemoryActionStore) list(match func(*action.Action) bool, newestFirst bool, limit int) ([]action.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []action.Action
	for _, a := range s.actions {
		if match(a) {
			result = append(result, *copyAction(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if newestFirst {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// copyAction creates a deep copy of an action.
func copyAction(a *action.Action) *action.Action {
	cp := *a
	if a.Payload != nil {
		cp.Payload = make(map[string]any, len(a.Payload))
		for k, v := range a.Payload {
			cp.Payload[k] = v
		}
	}
	cp.RiskFactors = append([]risk.Factor(nil), a.RiskFactors...)
	cp.Disclaimers = append([]string(nil), a.Disclaimers...)
	cp.DataSources = append([]proposal.DataSource(nil), a.DataSources...)
	if a.ApprovedAt != nil {
		t := *a.ApprovedAt
		cp.ApprovedAt = &t
	}
	if a.ExecutedAt != nil {
		t := *a.ExecutedAt
		cp.ExecutedAt = &t
	}
	if a.ExecutionResult != nil {
		res := *a.ExecutionResult
		res.AffectedRecords = append([]string(nil), a.ExecutionResult.AffectedRecords...)
		cp.ExecutionResult = &res
	}
	return &cp
}

// Compile-time interface verification.
var _ action.ActionStore = (*MemoryActionStore)(nil)
