package bucket

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	shardCount                = 32
	defaultMaxBucketsPerShard = 4096
)

// Memory is a sharded in-memory sliding window. Each shard holds at most
// maxPerShard buckets; the least recently used bucket is evicted first.
type Memory struct {
	shards      [shardCount]shard
	maxPerShard int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*window
}

type window struct {
	stamps   []time.Time
	lastSeen time.Time
}

// Option configures a Memory limiter.
type Option func(*Memory)

// WithMaxBucketsPerShard bounds memory per shard.
func WithMaxBucketsPerShard(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxPerShard = n
		}
	}
}

// NewMemory creates an empty limiter.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{maxPerShard: defaultMaxBucketsPerShard}
	for _, opt := range opts {
		opt(m)
	}
	for i := range m.shards {
		m.shards[i].buckets = make(map[string]*window)
	}
	return m
}

// AllowN admits cost units if the window has room for all of them.
func (m *Memory) AllowN(_ context.Context, key string, cost, limit int, win time.Duration, now time.Time) (Result, error) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w := sh.buckets[key]
	if w == nil {
		if len(sh.buckets) >= m.maxPerShard {
			sh.evictOldest()
		}
		w = &window{}
		sh.buckets[key] = w
	}
	w.lastSeen = now
	w.trim(now, win)

	if len(w.stamps)+cost > limit {
		reset := now.Add(win)
		if len(w.stamps) > 0 {
			reset = w.stamps[0].Add(win)
		}
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: reset}, nil
	}
	for range cost {
		w.stamps = append(w.stamps, now)
	}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.stamps),
		ResetAt:   w.stamps[0].Add(win),
	}, nil
}

// RefundN drops the cost most recent admissions for key.
func (m *Memory) RefundN(_ context.Context, key string, cost int) error {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if w := sh.buckets[key]; w != nil {
		w.stamps = w.stamps[:max(len(w.stamps)-cost, 0)]
	}
	return nil
}

// Reset clears the bucket for key.
func (m *Memory) Reset(_ context.Context, key string) error {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.buckets, key)
	return nil
}

// Stats returns the total bucket count and the count per shard.
func (m *Memory) Stats() (int, []int) {
	per := make([]int, shardCount)
	total := 0
	for i := range m.shards {
		m.shards[i].mu.Lock()
		per[i] = len(m.shards[i].buckets)
		m.shards[i].mu.Unlock()
		total += per[i]
	}
	return total, per
}

func (m *Memory) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

// evictOldest must be called with the shard lock held.
func (sh *shard) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, w := range sh.buckets {
		if oldestKey == "" || w.lastSeen.Before(oldest) {
			oldestKey, oldest = k, w.lastSeen
		}
	}
	delete(sh.buckets, oldestKey)
}

func (w *window) trim(now time.Time, win time.Duration) {
	cutoff := now.Add(-win)
	i := 0
	for ; i < len(w.stamps); i++ {
		if w.stamps[i].After(cutoff) {
			break
		}
	}
	w.stamps = w.stamps[i:]
}
