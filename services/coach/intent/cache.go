// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// resultCache caches confirmation results with LRU eviction and TTL expiry.
//
// Thread Safety: safe for concurrent use.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int

	hits   atomic.Int64
	misses atomic.Int64
}

// cacheEntry stores one cached result.
type cacheEntry struct {
	key       string
	result    *Result
	expiresAt time.Time
}

func newResultCache(ttl time.Duration, maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// cacheKey normalizes the utterance before hashing so trivial whitespace and
// case differences share an entry.
func cacheKey(utterance string) string {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a cached result if present and not expired. The returned
// result is a copy with Cached set.
func (c *resultCache) Get(utterance string) (*Result, bool) {
	key := cacheKey(utterance)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[key]
	if !exists {
		c.misses.Add(1)
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.misses.Add(1)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	c.hits.Add(1)

	cp := *entry.result
	cp.Cached = true
	return &cp, true
}

// Set stores a result, evicting LRU entries at capacity.
func (c *resultCache) Set(utterance string, result *Result) {
	key := cacheKey(utterance)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.entries[key]; exists {
		entry := elem.Value.(*cacheEntry)
		entry.result = result
		entry.expiresAt = time.Now().Add(c.ttl)
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.maxSize {
		c.removeElement(c.lru.Back())
	}

	elem := c.lru.PushFront(&cacheEntry{
		key:       key,
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.entries[key] = elem
}

// removeElement drops one element. Caller holds the mutex.
func (c *resultCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
}

// Len returns the number of live entries.
func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// HitRate returns the fraction of lookups served from cache.
func (c *resultCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
