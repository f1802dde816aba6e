// Package store persists usage events for reconciliation.
package store

import (
	"context"
	"sort"
	"sync"

	"tollgate/internal/usage"
)

type memKey struct {
	key      usage.Key
	reporter string
	hash     string
}

// InMemory keeps events for single-node deployments and tests.
type InMemory struct {
	mu     sync.RWMutex
	seen   map[memKey]struct{}
	events []usage.Event
}

func NewInMemory() *InMemory {
	return &InMemory{seen: make(map[memKey]struct{})}
}

// Append stores events not already present. Identical redeliveries are
// ignored; conflicting content for the same key is kept for reconciliation.
func (s *InMemory) Append(_ context.Context, events []usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		k := memKey{key: e.Key(), reporter: string(e.Reporter), hash: e.ContentHash()}
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		s.events = append(s.events, e)
	}
	return nil
}

// List returns matching events ordered by resolution time.
func (s *InMemory) List(_ context.Context, q usage.Query) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []usage.Event
	for _, e := range s.events {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ResolvedAt.Before(out[j].ResolvedAt) })
	return out, nil
}

// Len returns the number of stored events.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
