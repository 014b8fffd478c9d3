// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package sealed

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
)

var ErrAttestationInvalid = errors.New("invalid attestation")

// ExternalHandle is a ciphertext reference produced off-ledger by a
// client-side encryptor. It must be imported through the encryption
// engine before the registry will store it.
type ExternalHandle [32]byte

// Attestation accompanies an ExternalHandle and proves the ciphertext
// was produced for the importing principal. Verification is delegated
// to the encryption engine; the ledger only carries the blob.
type Attestation struct {
	Proof []byte `serialize:"true"`
}

// NewAttestation creates an attestation from a raw proof blob.
func NewAttestation(proof []byte) (*Attestation, error) {
	a := &Attestation{Proof: proof}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return a, nil
}

// Verify checks the attestation is well formed. Cryptographic binding
// to (handle, importer) is the engine's job.
func (a *Attestation) Verify() error {
	if len(a.Proof) == 0 {
		return fmt.Errorf("%w: empty proof", ErrAttestationInvalid)
	}
	return nil
}

// Bytes returns the byte representation of the attestation.
func (a *Attestation) Bytes() []byte {
	b, _ := rlp.EncodeToBytes(a)
	return b
}

// ParseAttestation parses an attestation from bytes.
func ParseAttestation(b []byte) (*Attestation, error) {
	a := &Attestation{}
	if err := rlp.DecodeBytes(b, a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attestation: %w", err)
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return a, nil
}

// ExternalField pairs an externally produced ciphertext with its
// attestation and the field name it populates on a registry entry.
type ExternalField struct {
	Name        string
	Handle      ExternalHandle
	Attestation *Attestation
	Kind        Kind
}

// Principal identifies a party on the ledger.
type Principal = common.Address

// RegistryPrincipal is the pseudo-address under which the registry
// itself holds ACL grants on the handles it stores.
var RegistryPrincipal = common.HexToAddress("0x0100000000000000000000000000000000000099")
