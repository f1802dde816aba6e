package keys

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tollgate/pkg/platform/sentinel"
)

// Source loads the current set of trusted keys from somewhere upstream.
type Source interface {
	Load(ctx context.Context) ([]*TrustedKey, error)
}

// Store is an in-memory, concurrency-safe key set. Lookups never block on
// upstream; Sync swaps the whole refreshed set at once.
//
// Three key sets are merged, highest precedence first:
//   - pinned: this node's own signing keys, kept for the life of the process
//   - refreshed: whatever the sources returned on the last Sync
//   - registered: consumer keys bound at issuance on this node, kept until
//     the refreshed set carries them or their NotAfter passes
type Store struct {
	mu           sync.RWMutex
	byKID        map[string]*TrustedKey
	byThumbprint map[string]*TrustedKey
	refreshed    map[string]*TrustedKey
	pinned       map[string]*TrustedKey
	registered   map[string]*TrustedKey
	now          func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byKID:        make(map[string]*TrustedKey),
		byThumbprint: make(map[string]*TrustedKey),
		refreshed:    make(map[string]*TrustedKey),
		pinned:       make(map[string]*TrustedKey),
		registered:   make(map[string]*TrustedKey),
		now:          time.Now,
	}
}

// Pin adds a key that survives every Sync. Locally held signing keys are
// pinned so a node can always verify what it signed.
func (s *Store) Pin(k *TrustedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[k.KID] = k
	s.index(k)
}

// Replace swaps the refreshed key set in. Pinned keys win over a refreshed
// key with the same kid; a refreshed key wins over a registered one, which
// lets an upstream revocation reach the node that issued the key. Registered
// keys past their NotAfter are dropped.
func (s *Store) Replace(keys []*TrustedKey) {
	refreshed := make(map[string]*TrustedKey, len(keys))
	for _, k := range keys {
		refreshed[k.KID] = k
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = refreshed
	for kid := range refreshed {
		delete(s.registered, kid)
	}
	s.rebuild(s.now())
}

// Prune drops registered keys that expired before now.
func (s *Store) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuild(now)
}

// rebuild recomputes the lookup indexes. Callers hold the write lock.
func (s *Store) rebuild(now time.Time) {
	for kid, k := range s.registered {
		if !k.NotAfter.IsZero() && !now.Before(k.NotAfter) {
			delete(s.registered, kid)
		}
	}
	n := len(s.refreshed) + len(s.pinned) + len(s.registered)
	s.byKID = make(map[string]*TrustedKey, n)
	s.byThumbprint = make(map[string]*TrustedKey, n)
	for _, set := range []map[string]*TrustedKey{s.registered, s.refreshed, s.pinned} {
		for _, k := range set {
			s.index(k)
		}
	}
}

func (s *Store) index(k *TrustedKey) {
	s.byKID[k.KID] = k
	if k.Kind == KindConsumer {
		s.byThumbprint[k.Thumbprint] = k
	}
}

// Sync loads every source and replaces the key set. Any source failing
// leaves the previous set in place.
func (s *Store) Sync(ctx context.Context, sources ...Source) error {
	var all []*TrustedKey
	for _, src := range sources {
		loaded, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("load trusted keys: %w", err)
		}
		all = append(all, loaded...)
	}
	s.Replace(all)
	return nil
}

// Resolve returns the key with the given kid and kind, usable at now.
// Unknown kid or wrong kind: sentinel.ErrNotFound. Revoked or past
// NotAfter: sentinel.ErrExpired.
func (s *Store) Resolve(_ context.Context, kid string, kind Kind, now time.Time) (*TrustedKey, error) {
	s.mu.RLock()
	k, ok := s.byKID[kid]
	s.mu.RUnlock()
	if !ok || k.Kind != kind {
		return nil, sentinel.ErrNotFound
	}
	if !k.ActiveAt(now) {
		return nil, sentinel.ErrExpired
	}
	return k, nil
}

// ResolveThumbprint returns the registered consumer key with the given
// thumbprint.
func (s *Store) ResolveThumbprint(_ context.Context, thumbprint string, now time.Time) (*TrustedKey, error) {
	s.mu.RLock()
	k, ok := s.byThumbprint[thumbprint]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !k.ActiveAt(now) {
		return nil, sentinel.ErrExpired
	}
	return k, nil
}

// Len returns the number of keys currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKID)
}

// Register adds a consumer key bound at issuance on this node. It satisfies
// the same registrar port as PostgresSource for single-node deployments.
// The key lives until its NotAfter or until a refresh carries it.
func (s *Store) Register(_ context.Context, k *TrustedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refreshed[k.KID]; ok {
		return nil
	}
	s.registered[k.KID] = k
	if _, ok := s.pinned[k.KID]; !ok {
		s.index(k)
	}
	return nil
}
