// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package sealed

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
)

var (
	ErrKindMismatch  = errors.New("handle kind mismatch")
	ErrUnknownHandle = errors.New("unknown handle")
)

// Kind marks the logical type carried by a ciphertext handle.
type Kind uint8

const (
	// Uint32 handles wrap an encrypted 32-bit unsigned integer.
	Uint32 Kind = iota

	// Bool handles wrap an encrypted boolean.
	Bool
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case Uint32:
		return "uint32"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Handle is an opaque reference to a ciphertext held by the encryption
// engine. It carries no plaintext. Handles are immutable: homomorphic
// operations never rewrite a ciphertext in place, they mint a new
// handle for the result.
type Handle struct {
	ID   ids.ID
	Kind Kind
}

// Zero reports whether the handle is the zero value.
func (h Handle) Zero() bool {
	return h.ID == ids.Empty
}

// String implements fmt.Stringer
func (h Handle) String() string {
	return fmt.Sprintf("%s:%s", h.Kind, h.ID)
}

// DeriveHandleID mints a fresh handle id for the result of a
// homomorphic operation. The id is a keccak digest over a domain tag,
// the operand ids and a per-engine nonce, so distinct operations never
// collide.
func DeriveHandleID(domain string, nonce uint64, operands ...ids.ID) ids.ID {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)

	preimage := make([]byte, 0, len(domain)+8+32*len(operands))
	preimage = append(preimage, domain...)
	preimage = append(preimage, nonceBytes[:]...)
	for _, op := range operands {
		preimage = append(preimage, op[:]...)
	}
	var id ids.ID
	copy(id[:], crypto.Keccak256(preimage))
	return id
}
