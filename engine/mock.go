// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/WilliamSmith5172078/sealed"
)

var (
	_ Engine    = (*MockEngine)(nil)
	_ Decryptor = (*MockEngine)(nil)
)

// MockEngine is an in-memory engine for tests and the CLI demo. It
// keeps plaintexts in a private table keyed by handle id and mints
// handle ids the same way a real coprocessor would, so callers cannot
// tell it apart through the Engine interface.
type MockEngine struct {
	mu       sync.Mutex
	values   map[ids.ID]uint64
	kinds    map[ids.ID]sealed.Kind
	external map[sealed.ExternalHandle]uint64
	nonce    uint64
}

// NewMockEngine creates an empty mock engine.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		values:   make(map[ids.ID]uint64),
		kinds:    make(map[ids.ID]sealed.Kind),
		external: make(map[sealed.ExternalHandle]uint64),
	}
}

// EncryptExternal plays the client-side encryptor: it produces an
// external ciphertext for value together with an attestation bound to
// the importing principal.
func (m *MockEngine) EncryptExternal(value uint64, importer common.Address) (sealed.ExternalHandle, *sealed.Attestation) {
	m.mu.Lock()
	m.nonce++
	nonce := m.nonce
	m.mu.Unlock()

	id := sealed.DeriveHandleID("mock/external", nonce)
	ext := sealed.ExternalHandle(id)

	m.mu.Lock()
	m.external[ext] = value
	m.mu.Unlock()

	att := &sealed.Attestation{Proof: attestationProof(ext, importer)}
	return ext, att
}

func attestationProof(ext sealed.ExternalHandle, importer common.Address) []byte {
	return crypto.Keccak256(ext[:], importer[:])
}

// FromExternal imports an external ciphertext after checking its
// attestation binds (handle, importer).
func (m *MockEngine) FromExternal(
	ext sealed.ExternalHandle,
	att *sealed.Attestation,
	importer common.Address,
	kind sealed.Kind,
) (sealed.Handle, error) {
	if att == nil {
		return sealed.Handle{}, fmt.Errorf("%w: missing attestation", sealed.ErrAttestationInvalid)
	}
	if err := att.Verify(); err != nil {
		return sealed.Handle{}, err
	}
	if !bytes.Equal(att.Proof, attestationProof(ext, importer)) {
		return sealed.Handle{}, fmt.Errorf("%w: proof does not bind handle to importer", sealed.ErrAttestationInvalid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.external[ext]
	if !ok {
		return sealed.Handle{}, fmt.Errorf("%w: external ciphertext not found", sealed.ErrAttestationInvalid)
	}

	m.nonce++
	id := sealed.DeriveHandleID("mock/import", m.nonce, ids.ID(ext))
	return m.mint(id, kind, value), nil
}

// TrivialEncrypt wraps a public constant.
func (m *MockEngine) TrivialEncrypt(value uint64, kind sealed.Kind) (sealed.Handle, error) {
	if kind == sealed.Bool && value > 1 {
		return sealed.Handle{}, fmt.Errorf("%w: bool value %d", ErrUnsupportedKind, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nonce++
	id := sealed.DeriveHandleID("mock/trivial", m.nonce)
	return m.mint(id, kind, value), nil
}

// Add returns a handle for a + b.
func (m *MockEngine) Add(a, b sealed.Handle) (sealed.Handle, error) {
	return m.binOp("mock/add", a, b, func(x, y uint64) uint64 { return uint64(uint32(x + y)) }, sealed.Uint32)
}

// Sub returns a handle for a - b, wrapping at 2^32.
func (m *MockEngine) Sub(a, b sealed.Handle) (sealed.Handle, error) {
	return m.binOp("mock/sub", a, b, func(x, y uint64) uint64 { return uint64(uint32(x - y)) }, sealed.Uint32)
}

// Rem returns a handle for a % b.
func (m *MockEngine) Rem(a, b sealed.Handle) (sealed.Handle, error) {
	return m.binOp("mock/rem", a, b, func(x, y uint64) uint64 {
		if y == 0 {
			return 0
		}
		return x % y
	}, sealed.Uint32)
}

// Eq returns a Bool handle for a == b.
func (m *MockEngine) Eq(a, b sealed.Handle) (sealed.Handle, error) {
	return m.binOp("mock/eq", a, b, func(x, y uint64) uint64 {
		if x == y {
			return 1
		}
		return 0
	}, sealed.Bool)
}

// Le returns a Bool handle for a <= b.
func (m *MockEngine) Le(a, b sealed.Handle) (sealed.Handle, error) {
	return m.binOp("mock/le", a, b, func(x, y uint64) uint64 {
		if x <= y {
			return 1
		}
		return 0
	}, sealed.Bool)
}

// Select returns a handle for cond ? a : b.
func (m *MockEngine) Select(cond, a, b sealed.Handle) (sealed.Handle, error) {
	if cond.Kind != sealed.Bool {
		return sealed.Handle{}, ErrNotBool
	}
	if a.Kind != b.Kind {
		return sealed.Handle{}, fmt.Errorf("%w: %s vs %s", sealed.ErrKindMismatch, a.Kind, b.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.values[cond.ID]
	if !ok {
		return sealed.Handle{}, fmt.Errorf("%w: %s", sealed.ErrUnknownHandle, cond.ID)
	}
	va, ok := m.values[a.ID]
	if !ok {
		return sealed.Handle{}, fmt.Errorf("%w: %s", sealed.ErrUnknownHandle, a.ID)
	}
	vb, ok := m.values[b.ID]
	if !ok {
		return sealed.Handle{}, fmt.Errorf("%w: %s", sealed.ErrUnknownHandle, b.ID)
	}

	result := vb
	if c != 0 {
		result = va
	}

	m.nonce++
	id := sealed.DeriveHandleID("mock/select", m.nonce, cond.ID, a.ID, b.ID)
	return m.mint(id, a.Kind, result), nil
}

// Decrypt recovers the plaintext behind a handle. Only the oracle side
// may hold a Decryptor; ledger code never calls this.
func (m *MockEngine) Decrypt(h sealed.Handle) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.values[h.ID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", sealed.ErrUnknownHandle, h.ID)
	}
	return value, nil
}

func (m *MockEngine) binOp(domain string, a, b sealed.Handle, op func(x, y uint64) uint64, kind sealed.Kind) (sealed.Handle, error) {
	if a.Kind != b.Kind {
		return sealed.Handle{}, fmt.Errorf("%w: %s vs %s", sealed.ErrKindMismatch, a.Kind, b.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	va, ok := m.values[a.ID]
	if !ok {
		return sealed.Handle{}, fmt.Errorf("%w: %s", sealed.ErrUnknownHandle, a.ID)
	}
	vb, ok := m.values[b.ID]
	if !ok {
		return sealed.Handle{}, fmt.Errorf("%w: %s", sealed.ErrUnknownHandle, b.ID)
	}

	m.nonce++
	id := sealed.DeriveHandleID(domain, m.nonce, a.ID, b.ID)
	return m.mint(id, kind, op(va, vb)), nil
}

// mint stores a plaintext under a fresh handle. Caller holds the lock.
func (m *MockEngine) mint(id ids.ID, kind sealed.Kind, value uint64) sealed.Handle {
	m.values[id] = value
	m.kinds[id] = kind
	return sealed.Handle{ID: id, Kind: kind}
}
