// Package replay remembers proof ids for the replay window. The in-memory
// cache serves a single node; the Redis cache lets nodes behind one
// publisher share a window.
package replay

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"tollgate/pkg/platform/sentinel"
)

// DefaultCapacity bounds the in-memory cache.
const DefaultCapacity = 100_000

// ErrFull is returned when every slot holds an id whose window is still open.
// Ids are never forgotten early, so the caller must refuse the proof.
var ErrFull = fmt.Errorf("replay cache full: %w", sentinel.ErrUnavailable)

type entry struct {
	id    string
	until time.Time
}

// Memory is a bounded, time-windowed set of seen ids. Entries expire at
// their own deadline and never earlier; when full of live ids, Remember
// fails with ErrFull.
type Memory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
	refused  uint64
}

// NewMemory creates a cache holding at most capacity ids.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Remember records id until the given deadline. It returns false when id was
// already recorded and has not expired, and ErrFull when there is no room.
func (m *Memory) Remember(_ context.Context, id string, until, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire(now)
	if el, ok := m.index[id]; ok {
		if el.Value.(*entry).until.After(now) {
			return false, nil
		}
		m.remove(el)
	}
	if m.order.Len() >= m.capacity {
		m.sweep(now)
	}
	if m.order.Len() >= m.capacity {
		m.refused++
		return false, ErrFull
	}
	m.index[id] = m.order.PushBack(&entry{id: id, until: until})
	return true, nil
}

// expire drops expired entries from the front. Deadlines are close to
// insertion order, so this reclaims nearly everything without a full scan.
func (m *Memory) expire(now time.Time) {
	for el := m.order.Front(); el != nil; el = m.order.Front() {
		if el.Value.(*entry).until.After(now) {
			return
		}
		m.remove(el)
	}
}

// sweep scans the whole list for expired entries that expire could not reach
// because an earlier insertion carries a later deadline.
func (m *Memory) sweep(now time.Time) {
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		if !el.Value.(*entry).until.After(now) {
			m.remove(el)
		}
		el = next
	}
}

func (m *Memory) remove(el *list.Element) {
	delete(m.index, el.Value.(*entry).id)
	m.order.Remove(el)
}

// Len returns the number of ids held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Refused returns how many ids were turned away because the cache was full.
func (m *Memory) Refused() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refused
}
