// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package acl records which principals may access which ciphertext
// handles. It is pure mechanism: callers decide who is entitled to a
// grant, the ACL only stores and answers.
package acl

import (
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Scope qualifies how long a grant lives.
type Scope uint8

const (
	// Permanent grants survive until explicitly revoked.
	Permanent Scope = iota

	// Transient grants cover the current operation only. They are
	// recorded so that audits can reconstruct access history, but a
	// consumer may clear them once the operation completes.
	Transient
)

// String implements fmt.Stringer
func (s Scope) String() string {
	if s == Permanent {
		return "permanent"
	}
	return "transient"
}

type grantKey struct {
	handle    ids.ID
	principal common.Address
}

// Observer is notified of every state change, primarily for event
// emission.
type Observer interface {
	AccessGranted(handle ids.ID, principal common.Address, scope Scope)
	AccessRevoked(handle ids.ID, principal common.Address)
	MadePublic(handle ids.ID)
}

// List is the access-control list over ciphertext handles. Consumers
// MUST check IsAllowed for every operand handle before comparing or
// decrypting; checking only one operand of a binary operation is the
// inference-attack vulnerability this type exists to prevent.
type List struct {
	mu     sync.RWMutex
	grants map[grantKey]Scope
	public map[ids.ID]struct{}

	observer Observer
}

// New creates an empty access-control list. The observer may be nil.
func New(observer Observer) *List {
	return &List{
		grants:   make(map[grantKey]Scope),
		public:   make(map[ids.ID]struct{}),
		observer: observer,
	}
}

// Grant records that principal may access handle. Granting twice is a
// no-op, never an error. A Permanent grant is never downgraded by a
// later Transient one.
func (l *List) Grant(handle ids.ID, principal common.Address, scope Scope) {
	key := grantKey{handle: handle, principal: principal}

	l.mu.Lock()
	prev, ok := l.grants[key]
	if ok && (prev == scope || prev == Permanent) {
		l.mu.Unlock()
		return
	}
	l.grants[key] = scope
	l.mu.Unlock()

	if l.observer != nil {
		l.observer.AccessGranted(handle, principal, scope)
	}
}

// IsAllowed reports whether principal holds any grant on handle, or
// the handle has been made public.
func (l *List) IsAllowed(handle ids.ID, principal common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.public[handle]; ok {
		return true
	}
	_, ok := l.grants[grantKey{handle: handle, principal: principal}]
	return ok
}

// IsPublic reports whether the handle is decryptable by anyone.
func (l *List) IsPublic(handle ids.ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.public[handle]
	return ok
}

// MakePublic flags the handle as decryptable by anyone. The transition
// is one-way: a public handle can never be made private again. The
// caller is responsible for checking the requesting principal owns the
// entry holding the handle.
func (l *List) MakePublic(handle ids.ID) {
	l.mu.Lock()
	_, already := l.public[handle]
	if !already {
		l.public[handle] = struct{}{}
	}
	l.mu.Unlock()

	if !already && l.observer != nil {
		l.observer.MadePublic(handle)
	}
}

// RevokeAll removes every grant on the handle. It exists solely for
// entity deletion, which cascade-revokes access to the destroyed
// ciphertexts; there is no per-principal revocation. Public flags are
// not cleared: public is one-way even across deletion.
func (l *List) RevokeAll(handle ids.ID) {
	l.mu.Lock()
	var revoked []common.Address
	for key := range l.grants {
		if key.handle == handle {
			revoked = append(revoked, key.principal)
			delete(l.grants, key)
		}
	}
	l.mu.Unlock()

	if l.observer != nil {
		for _, principal := range revoked {
			l.observer.AccessRevoked(handle, principal)
		}
	}
}

// Len returns the number of live grants, for tests and metrics.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.grants)
}
