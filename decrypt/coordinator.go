// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package decrypt coordinates asynchronous decryption. A request
// suspends the calling transaction without plaintext; the oracle
// fulfills it in a later, separate invocation. Plaintexts pass through
// the coordinator exactly once, to the registered callback, and are
// never stored.
package decrypt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/events"
)

var (
	ErrNoHandles          = errors.New("no handles to decrypt")
	ErrDuplicateRequest   = errors.New("outstanding request for same entry and purpose")
	ErrUnknownRequest     = errors.New("unknown decryption request")
	ErrUnauthorizedCaller = errors.New("caller is not the decryption oracle")
	ErrNotAllowed         = errors.New("requester lacks access to operand handle")
	ErrDeadlineNotReached = errors.New("request deadline not reached")
	ErrPlaintextCount     = errors.New("plaintext count does not match handle count")
)

// Purpose names why an entry's handles are being decrypted. At most
// one request per (entry, purpose) may be outstanding.
type Purpose string

// State of a decryption request.
type State uint8

const (
	Requested State = iota
	Fulfilled
	Expired
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Fulfilled:
		return "fulfilled"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Callback receives the decrypted plaintexts, in handle order. It runs
// once per request; the coordinator discards the plaintexts afterward.
type Callback func(plaintexts []uint64) error

// Request is the public snapshot of an in-flight decryption request.
type Request struct {
	ID       ids.ID
	EntryID  uint64
	Purpose  Purpose
	Handles  []sealed.Handle
	Deadline time.Time
	State    State
}

type pendingRequest struct {
	Request
	onFulfilled Callback
	onExpired   func()
}

// Config configures the coordinator.
type Config struct {
	// Oracle is the only identity allowed to fulfill requests.
	Oracle common.Address

	// PermissiveCallers accepts fulfillment from any caller. It exists
	// for development configurations and must stay off elsewhere.
	PermissiveCallers bool

	// Deadline is how long a request may stay outstanding before
	// anyone can expire it.
	Deadline time.Duration
}

// DefaultConfig returns the coordinator configuration used in
// production: strict caller checks and a one-hour deadline.
func DefaultConfig(oracle common.Address) Config {
	return Config{
		Oracle:   oracle,
		Deadline: time.Hour,
	}
}

type purposeKey struct {
	entryID uint64
	purpose Purpose
}

// Coordinator tracks in-flight decryption requests. It holds no state
// beyond that bookkeeping.
type Coordinator struct {
	cfg     Config
	list    *acl.List
	emitter events.Emitter
	log     log.Logger

	mu        sync.Mutex
	requests  map[ids.ID]*pendingRequest
	byPurpose map[purposeKey]ids.ID
	nonce     uint64
}

// New creates a coordinator authorizing fulfillment from cfg.Oracle.
func New(cfg Config, list *acl.List, emitter events.Emitter, logger log.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		list:      list,
		emitter:   emitter,
		log:       logger,
		requests:  make(map[ids.ID]*pendingRequest),
		byPurpose: make(map[purposeKey]ids.ID),
	}
}

// RequestDecryption opens a request for the given handles on behalf of
// requester. The requester must hold an ACL grant on every operand
// handle; checking only one operand would let a caller infer plaintext
// it was never granted. The emitted event is the suspension point: the
// oracle picks it up off-ledger and later calls Fulfill.
func (c *Coordinator) RequestDecryption(
	requester common.Address,
	entryID uint64,
	purpose Purpose,
	handles []sealed.Handle,
	onFulfilled Callback,
	onExpired func(),
) (ids.ID, error) {
	if len(handles) == 0 {
		return ids.Empty, ErrNoHandles
	}
	for _, h := range handles {
		if !c.list.IsAllowed(h.ID, requester) {
			return ids.Empty, fmt.Errorf("%w: %s for %s", ErrNotAllowed, h.ID, requester)
		}
	}

	c.mu.Lock()
	key := purposeKey{entryID: entryID, purpose: purpose}
	if _, outstanding := c.byPurpose[key]; outstanding {
		c.mu.Unlock()
		return ids.Empty, fmt.Errorf("%w: entry %d purpose %q", ErrDuplicateRequest, entryID, purpose)
	}

	c.nonce++
	id := requestID(entryID, purpose, c.nonce)
	req := &pendingRequest{
		Request: Request{
			ID:       id,
			EntryID:  entryID,
			Purpose:  purpose,
			Handles:  handles,
			Deadline: time.Now().Add(c.cfg.Deadline),
			State:    Requested,
		},
		onFulfilled: onFulfilled,
		onExpired:   onExpired,
	}
	c.requests[id] = req
	c.byPurpose[key] = id
	c.mu.Unlock()

	handleIDs := make([]ids.ID, len(handles))
	for i, h := range handles {
		handleIDs[i] = h.ID
	}
	c.emitter.Emit(events.Event{
		Type:      events.DecryptionRequested,
		EntryID:   entryID,
		Principal: requester,
		Handles:   handleIDs,
		RequestID: id,
	})
	c.log.Debug("decryption requested",
		log.Stringer("requestID", id),
		log.Uint64("entryID", entryID),
		log.String("purpose", string(purpose)),
	)
	return id, nil
}

// Fulfill completes a request with the decrypted plaintexts. Only the
// configured oracle may call it, unless the permissive dev flag is
// set. Unknown or already-settled request ids are rejected, which is
// what defends against replayed or spoofed callbacks. Plaintexts are
// handed to the request callback and then dropped.
func (c *Coordinator) Fulfill(id ids.ID, plaintexts []uint64, caller common.Address) error {
	if !c.cfg.PermissiveCallers && caller != c.cfg.Oracle {
		return fmt.Errorf("%w: %s", ErrUnauthorizedCaller, caller)
	}

	c.mu.Lock()
	req, ok := c.requests[id]
	if !ok || req.State != Requested {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if len(plaintexts) != len(req.Handles) {
		c.mu.Unlock()
		return fmt.Errorf("%w: got %d, want %d", ErrPlaintextCount, len(plaintexts), len(req.Handles))
	}
	req.State = Fulfilled
	delete(c.byPurpose, purposeKey{entryID: req.EntryID, purpose: req.Purpose})
	c.mu.Unlock()

	c.emitter.Emit(events.Event{
		Type:      events.DecryptionFulfilled,
		EntryID:   req.EntryID,
		Principal: caller,
		RequestID: id,
	})

	if req.onFulfilled == nil {
		return nil
	}
	if err := req.onFulfilled(plaintexts); err != nil {
		return fmt.Errorf("decryption callback failed: %w", err)
	}
	return nil
}

// Expire settles a request whose deadline has passed. Anyone may call
// it: the point is to unstick an entry whose oracle callback never
// arrived, not to protect the plaintext.
func (c *Coordinator) Expire(id ids.ID, now time.Time) error {
	c.mu.Lock()
	req, ok := c.requests[id]
	if !ok || req.State != Requested {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if now.Before(req.Deadline) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s until %s", ErrDeadlineNotReached, id, req.Deadline)
	}
	req.State = Expired
	delete(c.byPurpose, purposeKey{entryID: req.EntryID, purpose: req.Purpose})
	c.mu.Unlock()

	c.emitter.Emit(events.Event{
		Type:      events.DecryptionExpired,
		EntryID:   req.EntryID,
		RequestID: id,
	})

	if req.onExpired != nil {
		req.onExpired()
	}
	return nil
}

// Get returns a snapshot of the request, if known.
func (c *Coordinator) Get(id ids.ID) (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, ok := c.requests[id]
	if !ok {
		return Request{}, false
	}
	return req.Request, true
}

// Outstanding reports whether an unresolved request exists for the
// (entry, purpose) pair.
func (c *Coordinator) Outstanding(entryID uint64, purpose Purpose) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.byPurpose[purposeKey{entryID: entryID, purpose: purpose}]
	return ok
}

// requestID derives a unique request id from the entry, purpose and a
// per-coordinator nonce.
func requestID(entryID uint64, purpose Purpose, nonce uint64) ids.ID {
	id := sealed.DeriveHandleID("decrypt/"+string(purpose), nonce)
	binary.BigEndian.PutUint64(id[:8], entryID)
	return id
}
