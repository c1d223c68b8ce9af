// Package cache holds the most recent version snapshot for the process.
package cache

import (
	"maps"
	"sync"
)

// Snapshot maps a source name to its latest known version string. Degraded
// sources carry a sentinel string instead of a version, so a published
// snapshot always contains one entry per registered source.
type Snapshot map[string]string

// Store holds the current Snapshot. The refresh loop is the only writer and
// replaces the snapshot wholesale; readers never observe a partially updated
// view. The zero state (before the first refresh cycle) is an empty snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the current snapshot. The copy is safe to retain and
// iterate while further replacements happen.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.snapshot))
	maps.Copy(out, s.snapshot)
	return out
}

// Replace swaps in a new snapshot. The store takes ownership of m; callers
// must not mutate it afterwards.
func (s *Store) Replace(m Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = m
}
