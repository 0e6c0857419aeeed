// Package session maps browser sessions to form controllers and keeps a
// snapshot of each session's form so it survives a controller being swept
// or the process restarting.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/schema"
)

var ErrNotFound = errors.New("session not found")

// Snapshot is the persisted part of a form: values and the shown result.
// In-flight requests and notices are not persisted.
type Snapshot struct {
	Values schema.Values `json:"values"`
	Result *form.Result  `json:"result,omitempty"`
}

func snapshotOf(s form.State) Snapshot {
	snap := Snapshot{Values: s.Values.Clone()}
	if s.Result != nil {
		r := *s.Result
		snap.Result = &r
	}
	return snap
}

type Store interface {
	Load(ctx context.Context, id string) (Snapshot, error)
	Save(ctx context.Context, id string, snap Snapshot) error
	// Touch restarts the expiry of a saved snapshot. It returns ErrNotFound
	// when there is none.
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// purger is implemented by stores that need explicit expiry.
type purger interface {
	Purge() int
}

// MemoryStore keeps snapshots in process. Entries expire ttl after their
// last save or touch; a zero ttl keeps them forever.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

type memoryItem struct {
	snap    Snapshot
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	item, ok := m.items[id]
	m.mu.RUnlock()

	if !ok || m.expired(item) {
		return Snapshot{}, ErrNotFound
	}
	return item.snap, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, snap Snapshot) error {
	item := memoryItem{snap: snap}
	if m.ttl > 0 {
		item.expires = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.items[id] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok || m.expired(item) {
		return ErrNotFound
	}
	if m.ttl > 0 {
		item.expires = m.now().Add(m.ttl)
		m.items[id] = item
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (m *MemoryStore) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, item := range m.items {
		if m.expired(item) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) expired(item memoryItem) bool {
	return !item.expires.IsZero() && !m.now().Before(item.expires)
}
