package store

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

// Save stores a copy of s.
func (m *MemoryStore) Save(ctx context.Context, s Snapshot) error {
	if err := checkID(s.ID); err != nil {
		return err
	}
	s.Data = s.Data.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.ID] = s
	return nil
}

// Load returns a copy of the snapshot.
func (m *MemoryStore) Load(ctx context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	s, ok := m.snapshots[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, notFound(id)
	}
	s.Data = s.Data.Clone()
	return s, nil
}

// Delete removes the snapshot.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, id)
	return nil
}

// List returns the stored IDs.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	return sortedIDs(ids), nil
}
