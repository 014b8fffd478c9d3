// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/engine"
	"github.com/WilliamSmith5172078/sealed/events"
	"github.com/WilliamSmith5172078/sealed/registry"
)

var (
	ErrResolutionPending  = errors.New("resolution already pending")
	ErrInsufficientFunds  = errors.New("insufficient unlocked balance")
	ErrPlaintextForbidden = errors.New("plaintext resolution requires the dev flag")
)

// Config configures a game table.
type Config struct {
	Admin  common.Address
	MinBet *uint256.Int
	MaxBet *uint256.Int

	// DevPlaintextResolution selects the plaintext resolver. Off by
	// default; test and local configurations only.
	DevPlaintextResolution bool
}

// DefaultConfig returns the production table configuration.
func DefaultConfig(admin common.Address) Config {
	return Config{
		Admin:  admin,
		MinBet: sealed.MinBet.Clone(),
		MaxBet: sealed.MaxBet.Clone(),
	}
}

// Table is the ledger-facing surface of the wagering game. Each public
// method is one serialized transaction.
type Table struct {
	cfg      Config
	engine   engine.Engine
	list     *acl.List
	coord    *decrypt.Coordinator
	resolver Resolver
	emitter  events.Emitter
	log      log.Logger

	store *registry.Store[Game]

	// mu guards stats and treasury. It is only taken inside store
	// callbacks or standalone getters, never around them.
	mu      sync.Mutex
	stats   map[common.Address]*PlayerStats
	balance *uint256.Int
	locked  *uint256.Int
}

// NewTable builds a table with the resolver selected by cfg. Passing a
// nil decryptor is fine unless DevPlaintextResolution is set.
func NewTable(
	cfg Config,
	eng engine.Engine,
	dec engine.Decryptor,
	list *acl.List,
	coord *decrypt.Coordinator,
	emitter events.Emitter,
	logger log.Logger,
) (*Table, error) {
	t := &Table{
		cfg:     cfg,
		engine:  eng,
		list:    list,
		coord:   coord,
		emitter: emitter,
		log:     logger,
		store:   registry.New[Game](cfg.Admin),
		stats:   make(map[common.Address]*PlayerStats),
		balance: uint256.NewInt(0),
		locked:  uint256.NewInt(0),
	}

	if cfg.DevPlaintextResolution {
		if dec == nil {
			return nil, ErrPlaintextForbidden
		}
		t.resolver = NewPlaintextResolver(dec)
	} else {
		t.resolver = NewEncryptedResolver(eng, list, coord)
	}
	return t, nil
}

// Create opens a game with the creator's encrypted choice and stake.
func (t *Table) Create(
	creator common.Address,
	choice sealed.ExternalHandle,
	att *sealed.Attestation,
	stake *uint256.Int,
) (uint64, error) {
	if stake == nil || stake.Lt(t.cfg.MinBet) || stake.Gt(t.cfg.MaxBet) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStake, stake)
	}
	// ACL grants happen during import, so the pause gate must come first
	// or a rejected create would still leave grants behind.
	if t.store.Paused() {
		return 0, registry.ErrPaused
	}

	handles, err := registry.ImportFields(t.engine, t.list, creator, []sealed.ExternalField{{
		Name:        "choice",
		Handle:      choice,
		Attestation: att,
		Kind:        sealed.Uint32,
	}})
	if err != nil {
		return 0, err
	}

	id, err := t.store.Create(func(id uint64) *Game {
		return &Game{
			ID:        id,
			Player1:   creator,
			Stake:     stake.Clone(),
			Choice1:   handles["choice"],
			State:     Waiting,
			CreatedAt: time.Now(),
		}
	})
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.balance.Add(t.balance, stake)
	t.locked.Add(t.locked, stake)
	t.mu.Unlock()

	t.emitter.Emit(events.Event{
		Type:      events.EntryCreated,
		EntryID:   id,
		Principal: creator,
		Handles:   []ids.ID{handles["choice"].ID},
	})
	t.log.Info("game created",
		log.Uint64("gameID", id),
		log.Stringer("creator", creator),
	)
	return id, nil
}

// Join seats the counterparty and triggers resolution. The stake must
// match the creator's exactly.
func (t *Table) Join(
	id uint64,
	counterparty common.Address,
	choice sealed.ExternalHandle,
	att *sealed.Attestation,
	stake *uint256.Int,
) error {
	var choiceID ids.ID
	err := t.store.Update(id, func(g *Game) error {
		if g.State != Waiting {
			return fmt.Errorf("%w: %s", ErrWrongState, g.State)
		}
		if counterparty == g.Player1 {
			return ErrSelfJoin
		}
		if stake == nil || !stake.Eq(g.Stake) {
			return fmt.Errorf("%w: got %v, want %v", ErrStakeMismatch, stake, g.Stake)
		}

		handles, err := registry.ImportFields(t.engine, t.list, counterparty, []sealed.ExternalField{{
			Name:        "choice",
			Handle:      choice,
			Attestation: att,
			Kind:        sealed.Uint32,
		}})
		if err != nil {
			return err
		}

		g.Player2 = counterparty
		g.Choice2 = handles["choice"]
		g.State = BothPlayed
		choiceID = g.Choice2.ID

		t.mu.Lock()
		t.balance.Add(t.balance, stake)
		t.locked.Add(t.locked, stake)
		t.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	t.emitter.Emit(events.Event{
		Type:      events.EntryJoined,
		EntryID:   id,
		Principal: counterparty,
		Handles:   []ids.ID{choiceID},
	})

	return t.Resolve(id)
}

// Resolve starts resolution for a game with both choices in. It is
// public so a game whose decryption request expired can be resolved
// again.
func (t *Table) Resolve(id uint64) error {
	var snapshot Game
	err := t.store.View(id, func(g *Game) error {
		if g.State != BothPlayed {
			return fmt.Errorf("%w: %s", ErrWrongState, g.State)
		}
		if t.coord != nil && t.coord.Outstanding(id, PurposeResolution) {
			return ErrResolutionPending
		}
		snapshot = *g
		return nil
	})
	if err != nil {
		return err
	}

	reqID, err := t.resolver.Resolve(
		&snapshot,
		func(outcome uint64) error { return t.finish(id, outcome) },
		func() { t.onResolutionExpired(id) },
	)
	if err != nil {
		return fmt.Errorf("failed to start resolution: %w", err)
	}

	if reqID != ids.Empty {
		return t.store.Update(id, func(g *Game) error {
			if g.State == BothPlayed {
				g.PendingRequest = reqID
			}
			return nil
		})
	}
	return nil
}

// finish settles the game. State transition, stats and any tie refund
// are one atomic unit.
func (t *Table) finish(id uint64, outcome uint64) error {
	var (
		winner common.Address
		tie    bool
	)
	err := t.store.Update(id, func(g *Game) error {
		if g.State != BothPlayed {
			return fmt.Errorf("%w: %s", ErrWrongState, g.State)
		}

		g.State = Finished
		g.ResolvedAt = time.Now()
		g.PendingRequest = ids.Empty

		t.mu.Lock()
		defer t.mu.Unlock()

		s1 := t.statsLocked(g.Player1)
		s2 := t.statsLocked(g.Player2)
		s1.Total++
		s2.Total++

		switch outcome {
		case OutcomePlayer1Win:
			g.Winner = g.Player1
			s1.Wins++
			s2.Losses++
		case OutcomePlayer2Win:
			g.Winner = g.Player2
			s2.Wins++
			s1.Losses++
		default:
			g.Tie = true
			s1.Ties++
			s2.Ties++
			// Ties settle immediately: both stakes unlock and return.
			refund := new(uint256.Int).Add(g.Stake, g.Stake)
			t.locked.Sub(t.locked, refund)
			t.balance.Sub(t.balance, refund)
		}

		winner = g.Winner
		tie = g.Tie
		return nil
	})
	if err != nil {
		return err
	}

	t.emitter.Emit(events.Event{
		Type:      events.EntryFinished,
		EntryID:   id,
		Principal: winner,
	})
	t.log.Info("game finished",
		log.Uint64("gameID", id),
		log.Stringer("winner", winner),
		log.Bool("tie", tie),
	)
	return nil
}

// onResolutionExpired clears the stale request reference; the game
// stays in BothPlayed so Resolve can be called again.
func (t *Table) onResolutionExpired(id uint64) {
	err := t.store.Update(id, func(g *Game) error {
		g.PendingRequest = ids.Empty
		return nil
	})
	if err != nil {
		t.log.Warn("failed to clear expired resolution",
			log.Uint64("gameID", id),
			log.Err(err),
		)
	}
}

// Cancel refunds and closes a game nobody joined. Creator only.
func (t *Table) Cancel(id uint64, caller common.Address) error {
	var stake *uint256.Int
	err := t.store.Update(id, func(g *Game) error {
		if g.State != Waiting {
			return fmt.Errorf("%w: %s", ErrWrongState, g.State)
		}
		if err := registry.Authorize(caller, g.Player1, t.cfg.Admin, registry.Owner); err != nil {
			return err
		}

		g.State = Cancelled
		stake = g.Stake.Clone()

		t.mu.Lock()
		t.locked.Sub(t.locked, stake)
		t.balance.Sub(t.balance, stake)
		t.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	t.emitter.Emit(events.Event{
		Type:      events.EntryCancelled,
		EntryID:   id,
		Principal: caller,
	})
	return nil
}

// ClaimPrize pays the pot to the recorded winner, exactly once. The
// winner field is reset to the zero sentinel on payout; a second claim
// finds the sentinel and fails.
func (t *Table) ClaimPrize(id uint64, caller common.Address) (*uint256.Int, error) {
	var pot *uint256.Int
	err := t.store.Update(id, func(g *Game) error {
		if g.State != Finished {
			return fmt.Errorf("%w: %s", ErrWrongState, g.State)
		}
		if g.Winner == (common.Address{}) {
			return ErrAlreadyClaimed
		}
		if caller != g.Winner {
			return ErrNotWinner
		}

		pot = new(uint256.Int).Add(g.Stake, g.Stake)
		g.Winner = common.Address{}

		t.mu.Lock()
		defer t.mu.Unlock()

		t.statsLocked(caller).Winnings.Add(t.statsLocked(caller).Winnings, pot)
		t.locked.Sub(t.locked, pot)
		t.balance.Sub(t.balance, pot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.emitter.Emit(events.Event{
		Type:      events.PrizeClaimed,
		EntryID:   id,
		Principal: caller,
	})
	return pot, nil
}

// Get returns a read-only snapshot of the game, for any caller.
func (t *Table) Get(id uint64) (Snapshot, error) {
	var snap Snapshot
	err := t.store.View(id, func(g *Game) error {
		snap = g.snapshot()
		return nil
	})
	return snap, err
}

// Stats returns the aggregate record for a player.
func (t *Table) Stats(player common.Address) PlayerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsLocked(player).clone()
}

// statsLocked returns the mutable stats entry. Caller holds t.mu.
func (t *Table) statsLocked(player common.Address) *PlayerStats {
	s, ok := t.stats[player]
	if !ok {
		s = newPlayerStats()
		t.stats[player] = s
	}
	return s
}

// Pause stops all mutating operations. Admin only.
func (t *Table) Pause(caller common.Address) error {
	return t.store.Pause(caller)
}

// Unpause resumes mutating operations. Admin only.
func (t *Table) Unpause(caller common.Address) error {
	return t.store.Unpause(caller)
}

// Withdraw moves unlocked funds out of the table. Admin only; funds
// locked for live games and unclaimed pots cannot leave.
func (t *Table) Withdraw(caller common.Address, amount *uint256.Int) error {
	if caller != t.cfg.Admin {
		return registry.ErrUnauthorized
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	free := new(uint256.Int).Sub(t.balance, t.locked)
	if amount.Gt(free) {
		return fmt.Errorf("%w: %v free, %v requested", ErrInsufficientFunds, free, amount)
	}
	t.balance.Sub(t.balance, amount)
	return nil
}

// Balance returns (held, locked) table funds.
func (t *Table) Balance() (*uint256.Int, *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance.Clone(), t.locked.Clone()
}
