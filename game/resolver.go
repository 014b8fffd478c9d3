// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package game

import (
	"fmt"

	"github.com/luxfi/ids"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/engine"
)

// PurposeResolution is the decryption purpose under which game
// outcomes are revealed.
const PurposeResolution decrypt.Purpose = "game/resolve"

// Resolver turns two encrypted choices into an outcome. The variant is
// selected by configuration when the table is built, never by a
// runtime branch inside game logic.
type Resolver interface {
	// Resolve starts (or completes) resolution for the game. finish is
	// invoked with the outcome, possibly asynchronously. onExpired is
	// invoked if an asynchronous reveal times out. The returned id is
	// the pending decryption request, or ids.Empty if resolution
	// completed synchronously.
	Resolve(g *Game, finish func(outcome uint64) error, onExpired func()) (ids.ID, error)
}

var (
	_ Resolver = (*EncryptedResolver)(nil)
	_ Resolver = (*PlaintextResolver)(nil)
)

// EncryptedResolver computes (c2 - c1) mod 3 under encryption and asks
// the oracle to reveal only that single value. Neither raw choice ever
// gets a decryption request.
type EncryptedResolver struct {
	engine engine.Engine
	list   *acl.List
	coord  *decrypt.Coordinator
}

// NewEncryptedResolver creates the production resolver.
func NewEncryptedResolver(eng engine.Engine, list *acl.List, coord *decrypt.Coordinator) *EncryptedResolver {
	return &EncryptedResolver{
		engine: eng,
		list:   list,
		coord:  coord,
	}
}

// Resolve computes the outcome handle and opens a decryption request
// for it on behalf of the registry.
func (r *EncryptedResolver) Resolve(g *Game, finish func(outcome uint64) error, onExpired func()) (ids.ID, error) {
	three, err := r.engine.TrivialEncrypt(3, sealed.Uint32)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to encrypt modulus: %w", err)
	}

	// (c2 + 3 - c1) % 3: the +3 keeps the subtraction from wrapping.
	// Each choice beats its successor in the cycle, so a difference of 1
	// means player1's choice beats player2's.
	sum, err := r.engine.Add(g.Choice2, three)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to add modulus: %w", err)
	}
	diff, err := r.engine.Sub(sum, g.Choice1)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to subtract choice: %w", err)
	}
	outcome, err := r.engine.Rem(diff, three)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to reduce outcome: %w", err)
	}

	// The outcome handle is freshly minted: grant the registry so it
	// can be decrypted, and both players so they can audit the reveal.
	r.list.Grant(outcome.ID, sealed.RegistryPrincipal, acl.Permanent)
	r.list.Grant(outcome.ID, g.Player1, acl.Permanent)
	r.list.Grant(outcome.ID, g.Player2, acl.Permanent)

	return r.coord.RequestDecryption(
		sealed.RegistryPrincipal,
		g.ID,
		PurposeResolution,
		[]sealed.Handle{outcome},
		func(plaintexts []uint64) error {
			return finish(plaintexts[0] % 3)
		},
		onExpired,
	)
}

// PlaintextResolver decrypts both choices directly and settles
// synchronously. It exists only for development configurations; the
// table refuses to build with it unless the dev flag is set.
type PlaintextResolver struct {
	decryptor engine.Decryptor
}

// NewPlaintextResolver creates the dev-only resolver.
func NewPlaintextResolver(dec engine.Decryptor) *PlaintextResolver {
	return &PlaintextResolver{decryptor: dec}
}

// Resolve decrypts both choices and invokes finish before returning.
func (r *PlaintextResolver) Resolve(g *Game, finish func(outcome uint64) error, _ func()) (ids.ID, error) {
	c1, err := r.decryptor.Decrypt(g.Choice1)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to decrypt choice 1: %w", err)
	}
	c2, err := r.decryptor.Decrypt(g.Choice2)
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to decrypt choice 2: %w", err)
	}
	return ids.Empty, finish((c2 + 3 - c1) % 3)
}
