// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry provides the generic storage core under every
// encrypted-entry table: monotonic never-reused ids, existence checks,
// registry-wide pause, and the single authorization predicate shared
// by all state machines.
package registry

import (
	"errors"
	"sync"

	"github.com/luxfi/geth/common"
)

var (
	ErrNotFound     = errors.New("entry not found")
	ErrPaused       = errors.New("registry is paused")
	ErrUnauthorized = errors.New("caller not authorized")
)

// Role names the authority an operation requires.
type Role uint8

const (
	// Owner requires the caller to be the entry owner.
	Owner Role = iota

	// Admin requires the caller to be the registry admin.
	Admin

	// OwnerOrAdmin accepts either.
	OwnerOrAdmin
)

// Authorize is the one caller-identity predicate used by every
// privileged operation. Keeping it in one place keeps the checks
// uniform and independently testable.
func Authorize(caller, owner, admin common.Address, role Role) error {
	switch role {
	case Owner:
		if caller == owner {
			return nil
		}
	case Admin:
		if caller == admin {
			return nil
		}
	case OwnerOrAdmin:
		if caller == owner || caller == admin {
			return nil
		}
	}
	return ErrUnauthorized
}

// Store holds entries of type T keyed by a monotonic uint64 id. Ids
// are unique for the lifetime of the store and never reused, even
// after deletion. All access runs under a single lock, matching the
// serialized-transaction model of the host ledger.
type Store[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*T
	paused  bool
	admin   common.Address
}

// New creates an empty store administered by admin.
func New[T any](admin common.Address) *Store[T] {
	return &Store[T]{
		entries: make(map[uint64]*T),
		admin:   admin,
	}
}

// Create allocates the next id and stores the entry built by init.
// Fails when the registry is paused.
func (s *Store[T]) Create(init func(id uint64) *T) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return 0, ErrPaused
	}

	s.nextID++
	id := s.nextID
	s.entries[id] = init(id)
	return id, nil
}

// Update runs fn on the entry under the store lock. State transition
// and any bookkeeping done inside fn are a single atomic unit. The
// entry is left unchanged if fn returns an error only insofar as fn
// itself has not mutated it; fn must validate before mutating.
func (s *Store[T]) Update(id uint64, fn func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	return fn(entry)
}

// View runs fn on the entry under the store lock without the pause
// gate: reads stay available while the registry is paused.
func (s *Store[T]) View(id uint64, fn func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	return fn(entry)
}

// Range runs fn on every entry under the store lock, stopping early if
// fn returns false.
func (s *Store[T]) Range(fn func(id uint64, entry *T) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		if !fn(id, entry) {
			return
		}
	}
}

// Delete physically removes the entry. The id is never handed out
// again. fn runs on the entry before removal so the caller can cascade
// cleanup (ACL revocation, owner indexes) atomically with it.
func (s *Store[T]) Delete(id uint64, fn func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return ErrPaused
	}

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if fn != nil {
		if err := fn(entry); err != nil {
			return err
		}
	}
	delete(s.entries, id)
	return nil
}

// Len returns the number of live entries.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Admin returns the registry admin identity.
func (s *Store[T]) Admin() common.Address {
	return s.admin
}

// Pause stops all mutating operations until Unpause. Admin only.
func (s *Store[T]) Pause(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return ErrUnauthorized
	}
	s.paused = true
	return nil
}

// Unpause resumes mutating operations. Admin only.
func (s *Store[T]) Unpause(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		return ErrUnauthorized
	}
	s.paused = false
	return nil
}

// Paused reports whether the registry is paused.
func (s *Store[T]) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
