// Package ttlcache provides a generic in-memory cache with per-entry TTLs.
// Expired entries are swept lazily on access via an expiry min-heap, so
// eviction cost is amortised across operations and no janitor goroutine is
// needed.
package ttlcache

import (
	"container/heap"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type heapItem struct {
	key       string
	expiresAt time.Time
}

type expiryHeap []heapItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)         { *h = append(*h, x.(heapItem)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Cache is a thread-safe map with TTL-based expiry. The zero value is not
// usable; construct with New.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	expiry  expiryHeap
	nowFunc func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithNowFunc overrides the time source (primarily for testing).
func WithNowFunc[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.nowFunc = now
	}
}

// New creates an empty cache.
func New[V any](options ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Set stores value under key for the given TTL, replacing any previous entry.
// A non-positive TTL stores nothing.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	expiresAt := c.nowFunc().Add(ttl)
	c.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	heap.Push(&c.expiry, heapItem{key: key, expiresAt: expiresAt})
}

// Get returns the value for key if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	e, ok := c.entries[key]
	if !ok || c.nowFunc().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of unexpired entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	return len(c.entries)
}

// sweep pops expired heap heads and drops the matching map entries. A heap
// item is stale if the entry was overwritten with a later expiry; those are
// skipped by comparing timestamps.
func (c *Cache[V]) sweep() {
	now := c.nowFunc()
	for len(c.expiry) > 0 && c.expiry[0].expiresAt.Before(now) {
		item := heap.Pop(&c.expiry).(heapItem)
		if e, ok := c.entries[item.key]; ok && !e.expiresAt.After(item.expiresAt) {
			delete(c.entries, item.key)
		}
	}
}
