// Package l1 provides the in-process cache tier: a bounded LRU with
// per-entry TTL. It is bounded both by item count and by an estimated
// memory budget, and evicts the least-recently-used entry whenever either
// bound is exceeded.
package l1

import (
	"bytes"
	"container/list"
	"fmt"
	"sync"
	"time"
)

// entryOverhead is the estimated fixed per-entry cost (map slot, list
// element, entry struct) added on top of key and value bytes.
const entryOverhead = 96

// entry is a single cached value. Entries are owned exclusively by the
// Cache they live in and are never handed out.
type entry struct {
	key        string
	value      []byte
	insertedAt time.Time
	expiresAt  time.Time // zero means no expiry
	size       int64
}

// Cache is a concurrency-safe LRU cache with TTL. Every operation,
// including Get, serializes through one mutex: a hit reorders the recency
// list, so there is deliberately no separate reader path.
type Cache struct {
	mu sync.Mutex

	maxItems int
	maxBytes int64

	// ll orders entries by recency: front is least recently used, back is
	// most recently used.
	ll    *list.List
	items map[string]*list.Element
	bytes int64

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// New creates a Cache bounded by maxItems entries and maxBytes of
// estimated memory.
func New(maxItems int, maxBytes int64) (*Cache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("l1: maxItems must be positive, got %d", maxItems)
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("l1: maxBytes must be positive, got %d", maxBytes)
	}
	return &Cache{
		maxItems: maxItems,
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		nowFunc:  time.Now,
	}, nil
}

// Get returns the value stored under key. An entry past its TTL is evicted
// lazily and reported as a miss. A hit marks the entry most recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.removeElement(el)
		return nil, false
	}
	c.ll.MoveToBack(el)
	return bytes.Clone(e.value), true
}

// Set stores value under key, replacing any existing entry and evicting
// LRU entries until both bounds hold. A ttl of zero disables expiry. A
// value whose estimated size alone exceeds the memory budget is rejected
// and Set returns false.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) bool {
	size := int64(len(key)+len(value)) + entryOverhead
	if size > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.bytes += size - e.size
		e.value = bytes.Clone(value)
		e.insertedAt = now
		e.expiresAt = expiresAt
		e.size = size
		c.ll.MoveToBack(el)
	} else {
		e := &entry{
			key:        key,
			value:      bytes.Clone(value),
			insertedAt: now,
			expiresAt:  expiresAt,
			size:       size,
		}
		c.items[key] = c.ll.PushBack(e)
		c.bytes += size
	}

	for c.ll.Len() > c.maxItems || c.bytes > c.maxBytes {
		c.removeElement(c.ll.Front())
	}
	return true
}

// Delete removes key and reports whether an entry was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Len returns the number of entries currently stored, including entries
// past their TTL that have not yet been touched.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Bytes returns the estimated memory used by stored entries.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// expired reports whether e is past its TTL. Must be called with c.mu held.
func (c *Cache) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && c.nowFunc().After(e.expiresAt)
}

// removeElement unlinks el from the list and the index and releases its
// memory accounting. Must be called with c.mu held.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.bytes -= e.size
}
