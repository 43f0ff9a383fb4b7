package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists cache entries. Load returns nil, nil for a missing key.
// List may omit entry values.
type Store interface {
	Name() string
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, entry Entry) error
	Remove(ctx context.Context, key string) (bool, error)
	RemoveAll(ctx context.Context) (int, error)
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// ExpiringStore is implemented by stores that can drop expired entries
// without listing them first
type ExpiringStore interface {
	RemoveExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore keeps entries in a mutex-guarded map
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Name implements Store
func (m *MemoryStore) Name() string { return "memory" }

// Load implements Store
func (m *MemoryStore) Load(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	e.Value = append([]byte(nil), e.Value...)
	return &e, nil
}

// Save implements Store
func (m *MemoryStore) Save(_ context.Context, entry Entry) error {
	entry.Value = append([]byte(nil), entry.Value...)

	m.mu.Lock()
	m.entries[entry.Key] = entry
	m.mu.Unlock()
	return nil
}

// Remove implements Store
func (m *MemoryStore) Remove(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

// RemoveAll implements Store
func (m *MemoryStore) RemoveAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	m.entries = make(map[string]Entry)
	return n, nil
}

// List implements Store. Entries are ordered by key.
func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		e.Value = nil
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }
