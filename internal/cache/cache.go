// Package cache provides a bounded in-memory LRU cache with optional TTL.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
}

// Cache is a size-bounded LRU cache. Entries expire ttl after their last
// write when a ttl is configured. All operations are guarded by a single
// mutex and never block on anything but that mutex.
//
// A capacity of zero is a legal degenerate configuration: Set discards the
// value and the cache stays empty, so Len never exceeds the capacity.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

// New creates a cache holding at most capacity entries. A ttl of zero
// disables expiry. Negative capacities are treated as zero.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value and promotes the key to most recently used.
// Expired entries are evicted as a side effect and reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.expired(ent) {
		c.removeElement(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

// Set stores the value. An existing key is updated in place, its freshness
// timestamp reset and promoted to most recently used. A new key evicts the
// least recently used entry first when the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.createdAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	if c.capacity == 0 {
		return
	}
	if len(c.items) >= c.capacity {
		c.evictOldest()
	}
	el := c.order.PushFront(&entry[K, V]{key: key, value: value, createdAt: c.now()})
	c.items[key] = el
}

// Remove drops the key if present.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Len reports the number of entries currently held, including entries that
// have expired but not yet been touched.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) expired(ent *entry[K, V]) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(ent.createdAt) > c.ttl
}

func (c *Cache[K, V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	ent := el.Value.(*entry[K, V])
	c.order.Remove(el)
	delete(c.items, ent.key)
}
