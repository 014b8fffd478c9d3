// Copyright (C) 2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import "sync"

// Ring is a thread-safe bounded FIFO retaining the most recent values
// appended to it. When full, appending evicts the oldest value. It
// backs the event feed's replayable history.
type Ring[V any] struct {
	mu       sync.RWMutex
	values   []V
	start    int
	size     int
	capacity int
}

// NewRing creates a ring retaining up to capacity values.
func NewRing[V any](capacity int) *Ring[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[V]{
		values:   make([]V, capacity),
		capacity: capacity,
	}
}

// Append adds a value, evicting the oldest if the ring is full.
func (r *Ring[V]) Append(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < r.capacity {
		r.values[(r.start+r.size)%r.capacity] = v
		r.size++
		return
	}
	r.values[r.start] = v
	r.start = (r.start + 1) % r.capacity
}

// Recent returns the retained values, oldest first.
func (r *Ring[V]) Recent() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]V, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.values[(r.start+i)%r.capacity]
	}
	return out
}

// Len returns the number of retained values.
func (r *Ring[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}
