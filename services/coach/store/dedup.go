// Copyright (C) 2025 CoachPilot AI (dev@coachpilot.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CoachPilotAI/CoachPilot/services/coach/datatypes"
)

// =============================================================================
// Event Dedup Cache
// =============================================================================

const (
	// DefaultDedupWindow is how long a delivered event stays recognizable
	// as a duplicate.
	DefaultDedupWindow = 5 * time.Minute

	// DefaultDedupMaxEntries caps memory use under event floods.
	DefaultDedupMaxEntries = 10000
)

// DedupCache suppresses duplicate inbound event deliveries.
//
// # Description
//
// Keys are the (timestamp, user, channel) identity of an event; values are
// the turn response originally produced for it. A duplicate delivery inside
// the window gets the cached response back instead of mutating the session a
// second time. Entries expire after the window and are also evicted LRU-first
// when the cache is full. A background sweeper removes expired entries so the
// map does not grow between duplicate lookups.
//
// # Thread Safety
//
// Safe for concurrent use.
type DedupCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	window  time.Duration
	maxSize int

	hits   atomic.Int64
	misses atomic.Int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// dedupEntry is the LRU element payload.
type dedupEntry struct {
	key       string
	response  *datatypes.TurnResponse
	expiresAt time.Time
}

// NewDedupCache creates a cache with the given window and size cap.
// Zero values select the defaults.
func NewDedupCache(window time.Duration, maxSize int) *DedupCache {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if maxSize <= 0 {
		maxSize = DefaultDedupMaxEntries
	}
	return &DedupCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		window:  window,
		maxSize: maxSize,
	}
}

// Lookup returns the cached response for key, if the event was already
// processed inside the window.
func (c *DedupCache) Lookup(key string) (*datatypes.TurnResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	entry := elem.Value.(*dedupEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem)
		c.misses.Add(1)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return entry.response, true
}

// Remember records the response produced for key. The response may be nil
// for events that were absorbed without a reply (self-echo, terminal
// sessions); the duplicate is still suppressed.
func (c *DedupCache) Remember(key string, response *datatypes.TurnResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*dedupEntry)
		entry.response = response
		entry.expiresAt = time.Now().Add(c.window)
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.maxSize {
		c.removeLocked(c.lru.Back())
	}
	elem := c.lru.PushFront(&dedupEntry{
		key:       key,
		response:  response,
		expiresAt: time.Now().Add(c.window),
	})
	c.entries[key] = elem
}

// removeLocked drops one element. Caller holds the mutex.
func (c *DedupCache) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*dedupEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
}

// Len returns the number of live entries.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// HitRate returns the fraction of lookups served from cache.
func (c *DedupCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Start launches the background sweep, one pass per window.
// Safe to call once; Stop halts it.
func (c *DedupCache) Start() {
	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(c.window)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to finish.
func (c *DedupCache) Stop() {
	c.mu.Lock()
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
}

// sweep removes expired entries, oldest first.
func (c *DedupCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*dedupEntry).expiresAt) {
			c.removeLocked(elem)
		}
		elem = prev
	}
}
