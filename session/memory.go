package session

import (
	"context"
	"fmt"
	"sync"

	agent "github.com/kavrelis/agent-core-go"
)

// MemoryStore is an in-memory conversation store backed by a
// sync.RWMutex-protected map. Snapshots are deep-copied on save and load
// to prevent external mutation.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*agent.ConversationSnapshot
}

var _ agent.ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snaps: make(map[string]*agent.ConversationSnapshot),
	}
}

// Save persists a snapshot by deep-copying it into the store.
func (m *MemoryStore) Save(_ context.Context, snap *agent.ConversationSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snaps[snap.ID] = deepCopy(snap)
	return nil
}

// Load retrieves a snapshot by ID. Returns a deep copy so callers cannot
// mutate store state. Returns an error if not found.
func (m *MemoryStore) Load(_ context.Context, id string) (*agent.ConversationSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snaps[id]
	if !ok {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	return deepCopy(s), nil
}

// Delete removes a snapshot by ID. Returns an error if not found.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.snaps[id]; !ok {
		return fmt.Errorf("conversation not found: %s", id)
	}
	delete(m.snaps, id)
	return nil
}

// List returns all snapshots in the store as deep copies.
func (m *MemoryStore) List(_ context.Context) ([]*agent.ConversationSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*agent.ConversationSnapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		result = append(result, deepCopy(s))
	}
	return result, nil
}

// deepCopy creates a deep copy of a snapshot.
func deepCopy(s *agent.ConversationSnapshot) *agent.ConversationSnapshot {
	msgs := make([]agent.Message, len(s.Messages))
	copy(msgs, s.Messages)

	return &agent.ConversationSnapshot{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  msgs,
		Usage:     s.Usage,
		MaxTokens: s.MaxTokens,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
