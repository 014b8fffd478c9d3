// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine defines the boundary to the homomorphic encryption
// engine. The engine owns all ciphertexts; the ledger only ever sees
// the handles it mints. No homomorphic arithmetic is implemented here.
package engine

import (
	"errors"

	"github.com/luxfi/geth/common"

	"github.com/WilliamSmith5172078/sealed"
)

var (
	ErrUnsupportedKind = errors.New("unsupported handle kind")
	ErrNotBool         = errors.New("condition handle is not a bool")
)

// Engine is the homomorphic encryption collaborator. Every binary
// operation mints a fresh handle for its result; operand handles are
// never mutated.
type Engine interface {
	// FromExternal imports an externally produced ciphertext after
	// verifying its attestation binds the ciphertext to the importing
	// principal. Fails with sealed.ErrAttestationInvalid otherwise.
	FromExternal(ext sealed.ExternalHandle, att *sealed.Attestation, importer common.Address, kind sealed.Kind) (sealed.Handle, error)

	// TrivialEncrypt wraps a public plaintext constant in a handle so
	// it can participate in homomorphic operations.
	TrivialEncrypt(value uint64, kind sealed.Kind) (sealed.Handle, error)

	// Add returns a handle for a + b.
	Add(a, b sealed.Handle) (sealed.Handle, error)

	// Sub returns a handle for a - b (wrapping).
	Sub(a, b sealed.Handle) (sealed.Handle, error)

	// Rem returns a handle for a % b.
	Rem(a, b sealed.Handle) (sealed.Handle, error)

	// Eq returns a Bool handle for a == b.
	Eq(a, b sealed.Handle) (sealed.Handle, error)

	// Le returns a Bool handle for a <= b.
	Le(a, b sealed.Handle) (sealed.Handle, error)

	// Select returns a handle for cond ? a : b. cond must be Bool.
	Select(cond, a, b sealed.Handle) (sealed.Handle, error)
}

// Decryptor recovers plaintexts from handles. Only the decryption
// oracle side holds one; ledger components never do.
type Decryptor interface {
	Decrypt(h sealed.Handle) (uint64, error)
}
