// Copyright (C) 2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides the small generic caches used by the engine:
// a bounded FIFO ring for event history and a TTL cache with
// single-flight fetch for oracle committee lookups.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL caches fetched values for a fixed duration. Concurrent fetches
// for the same key are deduplicated through a single-flight group.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
	ttl     time.Duration
	group   singleflight.Group
}

// NewTTL creates a TTL cache whose entries stay fresh for ttl.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]ttlEntry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value for key if still fresh, otherwise calls
// fetch and caches the result. If invalidate is true the stale value is
// cleared before fetching so no reader observes it mid-refresh.
func (c *TTL[K, V]) Get(key K, fetch func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	} else {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && time.Now().Before(entry.expiresAt) {
			return entry.value, nil
		}
	}

	v, err, _ := c.group.Do(keyString(key), func() (interface{}, error) {
		value, fetchErr := fetch(key)
		if fetchErr != nil {
			return *new(V), fetchErr
		}

		c.mu.Lock()
		c.entries[key] = ttlEntry[V]{
			value:     value,
			expiresAt: time.Now().Add(c.ttl),
		}
		c.mu.Unlock()

		return value, nil
	})
	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// keyString allows both fmt.Stringer keys and primitive types.
func keyString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
