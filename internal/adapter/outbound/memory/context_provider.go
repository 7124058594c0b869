package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wardenlabs/warden/internal/domain/agentctx"
)

// MemoryContextProvider serves seeded client context snapshots. Dev mode
// and tests seed it; production wires a real aggregator instead.
type MemoryContextProvider struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]agentctx.Snapshot
}

// NewMemoryContextProvider creates an empty provider.
func NewMemoryContextProvider() *MemoryContextProvider {
	return &MemoryContextProvider{
		snapshots: make(map[string]map[string]agentctx.Snapshot),
	}
}

// Seed stores the snapshot for a client, replacing any existing one.
func (m *MemoryContextProvider) Seed(workspaceID, clientID string, snap agentctx.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[workspaceID] == nil {
		m.snapshots[workspaceID] = make(map[string]agentctx.Snapshot)
	}
	m.snapshots[workspaceID][clientID] = snap
}

// ListClients returns the seeded client ids for a workspace, sorted for
// deterministic cohort order.
func (m *MemoryContextProvider) ListClients(_ context.Context, workspaceID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]string, 0, len(m.snapshots[workspaceID]))
	for id := range m.snapshots[workspaceID] {
		clients = append(clients, id)
	}
	sort.Strings(clients)
	return clients, nil
}

// Snapshot returns the seeded snapshot for a client.
func (m *MemoryContextProvider) Snapshot(_ context.Context, workspaceID, clientID string) (agentctx.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[workspaceID][clientID]
	if !ok {
		return agentctx.Snapshot{}, fmt.Errorf("no context snapshot for client %s", clientID)
	}
	return snap, nil
}
