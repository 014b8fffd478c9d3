// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package game implements the two-player wagering state machine. Move
// choices live behind encrypted handles from submission until
// resolution; resolution reveals only the winner index, never either
// raw choice.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/WilliamSmith5172078/sealed"
)

var (
	ErrInvalidStake   = errors.New("stake outside allowed bounds")
	ErrStakeMismatch  = errors.New("stake does not match game stake")
	ErrSelfJoin       = errors.New("creator cannot join own game")
	ErrWrongState     = errors.New("operation invalid for game state")
	ErrAlreadyClaimed = errors.New("prize already claimed")
	ErrNotWinner      = errors.New("caller is not the recorded winner")
)

// Choice is a plaintext move. On-ledger it only ever appears inside
// the dev resolver and tests; production games carry encrypted
// choices.
type Choice uint8

const (
	Rock     Choice = 0
	Scissors Choice = 1
	Paper    Choice = 2
)

// Valid reports whether the choice is in range.
func (c Choice) Valid() bool {
	return c <= Paper
}

// String implements fmt.Stringer
func (c Choice) String() string {
	switch c {
	case Rock:
		return "rock"
	case Scissors:
		return "scissors"
	case Paper:
		return "paper"
	default:
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
}

// State of a game.
type State uint8

const (
	// Waiting games have one player and an open seat.
	Waiting State = iota

	// BothPlayed games hold two encrypted choices and are waiting for
	// resolution.
	BothPlayed

	// Finished is terminal; the winner (if any) may claim once.
	Finished

	// Cancelled is terminal; the creator backed out before anyone
	// joined and was refunded.
	Cancelled
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case BothPlayed:
		return "both_played"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome of resolution: (c2 - c1) mod 3.
const (
	OutcomeTie        uint64 = 0
	OutcomePlayer1Win uint64 = 1
	OutcomePlayer2Win uint64 = 2
)

// Game is a single wager. Entries are never physically removed; they
// reach a terminal state and stay.
type Game struct {
	ID      uint64
	Player1 common.Address
	Player2 common.Address
	Stake   *uint256.Int

	// Choice1 and Choice2 are encrypted handles; the ledger never sees
	// the moves behind them.
	Choice1 sealed.Handle
	Choice2 sealed.Handle

	State State

	// Winner is the address entitled to claim the pot. It is reset to
	// the zero address on claim; that sentinel reset, not a lock, is
	// the at-most-once payout guarantee. Ties never set it.
	Winner common.Address
	Tie    bool

	CreatedAt  time.Time
	ResolvedAt time.Time

	// PendingRequest is the outstanding decryption request, if any.
	PendingRequest ids.ID
}

// Snapshot is the read-only view returned to any caller. It exposes
// plaintext metadata and handle identifiers only; handle opacity, not
// query authorization, is the confidentiality boundary.
type Snapshot struct {
	ID        uint64
	Player1   common.Address
	Player2   common.Address
	Stake     *uint256.Int
	Choice1ID ids.ID
	Choice2ID ids.ID
	State     State
	Winner    common.Address
	Tie       bool
	CreatedAt time.Time
}

func (g *Game) snapshot() Snapshot {
	return Snapshot{
		ID:        g.ID,
		Player1:   g.Player1,
		Player2:   g.Player2,
		Stake:     g.Stake.Clone(),
		Choice1ID: g.Choice1.ID,
		Choice2ID: g.Choice2.ID,
		State:     g.State,
		Winner:    g.Winner,
		Tie:       g.Tie,
		CreatedAt: g.CreatedAt,
	}
}

// PlayerStats aggregates a player's record. Counters only ever grow.
type PlayerStats struct {
	Total    uint64
	Wins     uint64
	Losses   uint64
	Ties     uint64
	Winnings *uint256.Int
}

func newPlayerStats() *PlayerStats {
	return &PlayerStats{Winnings: uint256.NewInt(0)}
}

func (s *PlayerStats) clone() PlayerStats {
	out := *s
	out.Winnings = s.Winnings.Clone()
	return out
}
