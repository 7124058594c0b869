// Package memory provides in-memory implementations of the outbound
// stores. Thread-safe for concurrent access. For development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// scopeKey addresses a policy row by (workspace, client).
type scopeKey struct {
	workspaceID string
	clientID    string
}

// MemoryPolicyStore implements policy.PolicyStore with an in-memory map.
type MemoryPolicyStore struct {
	policies map[scopeKey]*policy.AgentPolicy
	mu       sync.RWMutex
}

// NewPolicyStore creates a new in-memory policy store.
func NewPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		policies: make(map[scopeKey]*policy.AgentPolicy),
	}
}

// Get returns the policy row for the exact scope.
func (s *MemoryPolicyStore) Get(ctx context.Context, workspaceID, clientID string) (*policy.AgentPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[scopeKey{workspaceID, clientID}]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return copyPolicy(p), nil
}

// Save creates or replaces the policy row for its scope.
func (s *MemoryPolicyStore) Save(ctx context.Context, p *policy.AgentPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies[scopeKey{p.WorkspaceID, p.ClientID}] = copyPolicy(p)
	return nil
}

// Delete removes the policy row for the scope.
func (s *MemoryPolicyStore) Delete(ctx context.Context, workspaceID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopeKey{workspaceID, clientID}
	if _, ok := s.policies[key]; !ok {
		return policy.ErrPolicyNotFound
	}
	delete(s.policies, key)
	return nil
}

// ListWorkspace returns all policy rows for a workspace.
func (s *MemoryPolicyStore) ListWorkspace(ctx context.Context, workspaceID string) ([]policy.AgentPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []policy.AgentPolicy
	for key, p := range s.policies {
		if key.workspaceID == workspaceID {
			result = append(result, *copyPolicy(p))
		}
	}
	return result, nil
}

// copyPolicy creates a deep copy of a policy row.
func copyPolicy(p *policy.AgentPolicy) *policy.AgentPolicy {
	cp := *p
	cp.AllowedActions = append([]proposal.ActionKind(nil), p.AllowedActions...)
	cp.GuardRules = append([]policy.GuardRule(nil), p.GuardRules...)
	return &cp
}

// Compile-time interface verification.
var _ policy.PolicyStore = (*MemoryPolicyStore)(nil)
