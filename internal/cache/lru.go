// Brevis - URL Shortening and Click Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/brevis

// Package cache provides the hot-link LRU cache used on the redirect path.
//
// The cache keeps recently resolved links in memory so the synchronous
// redirect lookup is usually a map read rather than a database query.
// Entries carry a TTL to bound staleness; setActive and reconciliation
// invalidate explicitly.
package cache

import (
	"sync"
	"time"

	"github.com/tomtom215/brevis/internal/models"
)

// lruEntry is a node in the doubly-linked LRU list.
type lruEntry struct {
	key       string
	value     *models.Link
	prev      *lruEntry
	next      *lruEntry
	expiresAt time.Time
}

// LinkCache is a thread-safe LRU cache with TTL support.
// Get, Add, Remove and eviction are all O(1): a hashmap provides lookup and
// a doubly-linked list with sentinel head/tail provides recency ordering.
type LinkCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*lruEntry

	// head.next is most recently used, tail.prev least recently used.
	head *lruEntry
	tail *lruEntry

	hits   int64
	misses int64
}

// NewLinkCache creates an LRU cache with the given capacity and TTL.
func NewLinkCache(capacity int, ttl time.Duration) *LinkCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &LinkCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached link for a short code, or nil and false when the
// code is absent or the entry expired. Found entries become most recently
// used.
func (c *LinkCache) Get(code string) (*models.Link, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[code]
	if !exists {
		c.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	return entry.value, true
}

// Add inserts or refreshes a link. At capacity, the least recently used
// entry is evicted.
func (c *LinkCache) Add(link *models.Link) {
	if link == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[link.ShortCode]; exists {
		entry.value = link
		entry.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		c.removeEntry(c.tail.prev)
	}

	entry := &lruEntry{
		key:       link.ShortCode,
		value:     link,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[link.ShortCode] = entry
	c.insertAtFront(entry)
}

// Remove invalidates a short code. Used when a link's active flag changes
// or its aggregate is repaired, so stale copies never outlive the TTL.
func (c *LinkCache) Remove(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[code]; exists {
		c.removeEntry(entry)
	}
}

// Len returns the number of entries currently cached, including any not yet
// lazily expired.
func (c *LinkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counts since creation.
func (c *LinkCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// removeEntry unlinks an entry from list and map (mu held).
func (c *LinkCache) removeEntry(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

// moveToFront marks an entry most recently used (mu held).
func (c *LinkCache) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.insertAtFront(entry)
}

// insertAtFront links an entry at the head (mu held).
func (c *LinkCache) insertAtFront(entry *lruEntry) {
	entry.next = c.head.next
	entry.prev = c.head
	c.head.next.prev = entry
	c.head.next = entry
}
