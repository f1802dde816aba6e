// Package store persists signed forensic manifests.
package store

import (
	"context"
	"fmt"
	"sync"

	"tollgate/internal/manifest"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/sentinel"
)

// InMemory keeps manifests for single-node deployments and tests.
type InMemory struct {
	mu        sync.RWMutex
	manifests map[domain.ManifestID]*manifest.Signed
}

func NewInMemory() *InMemory {
	return &InMemory{manifests: make(map[domain.ManifestID]*manifest.Signed)}
}

// Save stores m. Manifests are immutable; saving an existing id conflicts.
func (s *InMemory) Save(_ context.Context, m *manifest.Signed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.manifests[m.Manifest.ID]; ok {
		return fmt.Errorf("manifest %s: %w", m.Manifest.ID, sentinel.ErrConflict)
	}
	s.manifests[m.Manifest.ID] = m
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ManifestID) (*manifest.Signed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[id]
	if !ok {
		return nil, fmt.Errorf("manifest %s: %w", id, sentinel.ErrNotFound)
	}
	return m, nil
}
