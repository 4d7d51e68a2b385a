// Shiori - Adaptive Reading Preference & Discovery Engine
// Copyright 2026 K. Arasawa (karasawa)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/karasawa/shiori

// Package cache provides a small TTL cache used to keep hot catalog
// lookups off the database during scoring fan-out.
package cache

import (
	"sync"
	"time"
)

// entry is one cached value with its expiry.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a concurrency-safe cache with per-entry expiry. Expired entries
// are dropped lazily on read and in bulk when the map grows past its
// soft bound.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	bound   int
}

// NewTTL creates a cache whose entries live for ttl. bound is the soft
// entry limit that triggers an eviction sweep.
func NewTTL[V any](ttl time.Duration, bound int) *TTL[V] {
	if bound <= 0 {
		bound = 4096
	}
	return &TTL[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		bound:   bound,
	}
}

// Get returns the cached value when present and fresh.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.bound {
		c.sweepLocked()
	}
	c.entries[key] = entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate removes one key.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweepLocked drops expired entries; when nothing has expired it clears
// everything rather than grow without bound. Caller holds mu.
func (c *TTL[V]) sweepLocked() {
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) >= c.bound {
		c.entries = make(map[string]entry[V])
	}
}
