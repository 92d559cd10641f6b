package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// Store holds the most recent snapshot in memory.
type Store struct {
	mu     sync.RWMutex
	latest domain.Snapshot
	ok     bool
	scans  int
}

func New() *Store {
	return &Store{}
}

// Publish replaces the latest snapshot. Snapshots are never mutated after
// a scan completes, so readers can share the value.
func (m *Store) Publish(ctx context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = snap
	m.ok = true
	m.scans++
	return nil
}

func (m *Store) Latest(ctx context.Context) (domain.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.ok, nil
}

// Scans returns how many snapshots have been published.
func (m *Store) Scans() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scans
}
