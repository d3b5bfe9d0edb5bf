// Package snapshot owns the last accepted job snapshot and a short-lived
// cache of the most recent fetch. The TTL is deliberately short: stale data
// here directly produces wrong alerts.
package snapshot

import (
	"sync"
	"time"

	"dispatch-monitor/sentinel/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	previous domain.Snapshot
	cachedAt time.Time
	ttl      time.Duration

	now func() time.Time
}

func New(ttl time.Duration) *Store {
	return &Store{
		previous: domain.Snapshot{},
		ttl:      ttl,
		now:      time.Now,
	}
}

// Cached returns the last accepted snapshot if it is still within the TTL.
// ok=false signals that callers wanting fresh data must wait for (or force)
// a refetch.
func (s *Store) Cached() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cachedAt.IsZero() || s.now().Sub(s.cachedAt) > s.ttl {
		return nil, false
	}
	return s.previous, true
}

// Previous returns the snapshot from the last completed poll, for diffing.
// Returns an empty (never nil) snapshot before the first poll.
func (s *Store) Previous() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// Replace atomically commits a new snapshot. The change detector always
// diffs against one consistent prior state; readers never observe a
// half-applied snapshot.
func (s *Store) Replace(next domain.Snapshot) {
	if next == nil {
		next = domain.Snapshot{}
	}
	s.mu.Lock()
	s.previous = next
	s.cachedAt = s.now()
	s.mu.Unlock()
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previous)
}
