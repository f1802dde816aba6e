// Package cache indexes resources the edge has already served, so that
// cache_only failover can keep serving them while the issuer is unreachable.
package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tollgate/pkg/domain"
)

const redisKeyPrefix = "tollgate:cached:"

func entryKey(publisher domain.PublisherID, resourcePath string) string {
	return string(publisher) + "|" + path.Clean("/"+resourcePath)
}

// Memory is a node-local index with per-entry expiry.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemory creates an index whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]time.Time)}
}

// Mark records that resourcePath was served.
func (m *Memory) Mark(_ context.Context, publisher domain.PublisherID, resourcePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, k)
		}
	}
	m.entries[entryKey(publisher, resourcePath)] = now.Add(m.ttl)
	return nil
}

// Contains reports whether resourcePath is cached and unexpired.
func (m *Memory) Contains(_ context.Context, publisher domain.PublisherID, resourcePath string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.entries[entryKey(publisher, resourcePath)]
	return ok && m.now().Before(exp), nil
}

// Redis shares the index between nodes fronting the same content cache.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Mark(ctx context.Context, publisher domain.PublisherID, resourcePath string) error {
	return r.client.Set(ctx, redisKeyPrefix+entryKey(publisher, resourcePath), 1, r.ttl).Err()
}

func (r *Redis) Contains(ctx context.Context, publisher domain.PublisherID, resourcePath string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+entryKey(publisher, resourcePath)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
