// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events carries the observability surface of the engine. An
// event records a state change with enough identifiers (entry id,
// principal, handle ids) to reconstruct the ACL and state-machine
// history off-ledger. Events are not state: nothing reads them back to
// make decisions.
package events

import (
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Type discriminates engine events.
type Type uint8

const (
	EntryCreated Type = iota
	EntryJoined
	EntryFinished
	EntryCancelled
	PrizeClaimed
	FileUploaded
	FileVisibilityChanged
	FileTransferred
	FileDeleted
	DecryptionRequested
	DecryptionFulfilled
	DecryptionExpired
	AccessGranted
	AccessRevoked
	HandlePublic
)

// String implements fmt.Stringer
func (t Type) String() string {
	switch t {
	case EntryCreated:
		return "entry_created"
	case EntryJoined:
		return "entry_joined"
	case EntryFinished:
		return "entry_finished"
	case EntryCancelled:
		return "entry_cancelled"
	case PrizeClaimed:
		return "prize_claimed"
	case FileUploaded:
		return "file_uploaded"
	case FileVisibilityChanged:
		return "file_visibility_changed"
	case FileTransferred:
		return "file_transferred"
	case FileDeleted:
		return "file_deleted"
	case DecryptionRequested:
		return "decryption_requested"
	case DecryptionFulfilled:
		return "decryption_fulfilled"
	case DecryptionExpired:
		return "decryption_expired"
	case AccessGranted:
		return "access_granted"
	case AccessRevoked:
		return "access_revoked"
	case HandlePublic:
		return "handle_public"
	default:
		return "unknown"
	}
}

// Event is a single observable state change.
type Event struct {
	Type      Type
	EntryID   uint64
	Principal common.Address
	Handles   []ids.ID
	RequestID ids.ID
	Time      time.Time
}

// Emitter accepts events as they happen. Implementations must not
// block: they run inside the emitting transaction.
type Emitter interface {
	Emit(e Event)
}
