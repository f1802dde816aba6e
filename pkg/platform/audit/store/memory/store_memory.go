package memory

import (
	"context"
	"sort"
	"sync"

	audit "tollgate/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process, indexed by license.
type InMemoryStore struct {
	mu        sync.RWMutex
	byLicense map[string][]audit.Event
	all       []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byLicense: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byLicense = make(map[string][]audit.Event)
	s.all = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, event)
	if event.LicenseID != "" {
		s.byLicense[event.LicenseID] = append(s.byLicense[event.LicenseID], event)
	}
	return nil
}

func (s *InMemoryStore) ListByLicense(_ context.Context, licenseID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.byLicense[licenseID]...), nil
}

// ListRecent returns up to limit events, most recent first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	out := append([]audit.Event{}, s.all...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByAction returns every event with the given action, in append order.
func (s *InMemoryStore) ListByAction(_ context.Context, action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.all {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}
