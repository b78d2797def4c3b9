// Package handle provides the sharded handle tables that hold per-session
// and per-swapchain layer state.
//
// State is keyed by the runtime's opaque handle value rather than reached
// through pointers the application could retain. A lookup for a handle that
// was removed (or never inserted) simply misses, so a stale handle yields
// XR_ERROR_HANDLE_INVALID instead of touching freed state.
package handle

import (
	"sync"
	"sync/atomic"
)

// Default configuration constants.
const (
	// ShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	ShardCount = 16

	shardMask = ShardCount - 1
)

// Handle is any 64-bit opaque handle type.
type Handle interface {
	~uint64
}

// Table is a thread-safe map from handles to values, split into shards so
// that independent sessions and swapchains rarely contend on the same lock.
//
// Values are stored as-is. Callers that mutate a stored value must provide
// their own synchronization (the layer stores pointers to structs carrying
// their own mutex).
type Table[H Handle, V any] struct {
	shards [ShardCount]*shard[H, V]

	// Statistics (atomic for lock-free reads).
	lookups atomic.Uint64
	misses  atomic.Uint64
}

type shard[H Handle, V any] struct {
	mu      sync.RWMutex
	entries map[H]V
}

// Stats holds table statistics.
type Stats struct {
	Len     int
	Lookups uint64
	Misses  uint64
}

// NewTable creates an empty table.
func NewTable[H Handle, V any]() *Table[H, V] {
	t := &Table[H, V]{}
	for i := range t.shards {
		t.shards[i] = &shard[H, V]{entries: make(map[H]V)}
	}
	return t
}

// mix spreads sequential handle values (runtimes often hand out 1, 2, 3...)
// across shards. This is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func (t *Table[H, V]) getShard(h H) *shard[H, V] {
	return t.shards[mix(uint64(h))&shardMask]
}

// Insert stores v under h. It returns false, leaving the table unchanged,
// if h is already present.
func (t *Table[H, V]) Insert(h H, v V) bool {
	s := t.getShard(h)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[h]; ok {
		return false
	}
	s.entries[h] = v
	return true
}

// Get returns the value stored under h.
func (t *Table[H, V]) Get(h H) (V, bool) {
	s := t.getShard(h)
	s.mu.RLock()
	v, ok := s.entries[h]
	s.mu.RUnlock()

	t.lookups.Add(1)
	if !ok {
		t.misses.Add(1)
	}
	return v, ok
}

// Delete removes h and returns the value it held.
func (t *Table[H, V]) Delete(h H) (V, bool) {
	s := t.getShard(h)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries[h]
	if ok {
		delete(s.entries, h)
	}
	return v, ok
}

// DeleteFunc removes every entry for which del returns true and returns the
// removed values. Shards are processed one at a time, so del must not call
// back into the table.
func (t *Table[H, V]) DeleteFunc(del func(H, V) bool) []V {
	var removed []V
	for _, s := range t.shards {
		s.mu.Lock()
		for h, v := range s.entries {
			if del(h, v) {
				removed = append(removed, v)
				delete(s.entries, h)
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Values returns a snapshot of all stored values in no particular order.
func (t *Table[H, V]) Values() []V {
	var vals []V
	for _, s := range t.shards {
		s.mu.RLock()
		for _, v := range s.entries {
			vals = append(vals, v)
		}
		s.mu.RUnlock()
	}
	return vals
}

// Len returns the total number of entries across all shards.
func (t *Table[H, V]) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// ShardLen returns the number of entries in each shard.
// Useful for debugging load distribution.
func (t *Table[H, V]) ShardLen() [ShardCount]int {
	var lens [ShardCount]int
	for i, s := range t.shards {
		s.mu.RLock()
		lens[i] = len(s.entries)
		s.mu.RUnlock()
	}
	return lens
}

// Stats returns current table statistics.
func (t *Table[H, V]) Stats() Stats {
	return Stats{
		Len:     t.Len(),
		Lookups: t.lookups.Load(),
		Misses:  t.misses.Load(),
	}
}
