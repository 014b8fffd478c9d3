// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sealed implements an on-ledger engine for objects whose
// sensitive fields are stored as opaque encrypted handles. Plaintext
// never touches ledger state: handles are minted by an external
// encryption engine, access to them is mediated by an explicit ACL,
// and revealing a value goes through an asynchronous decryption
// request fulfilled out-of-band by a threshold oracle.
package sealed

import "github.com/holiman/uint256"

const (
	// KiB is 1024 bytes
	KiB = 1024

	// MaxFileSize is the largest declared file size accepted by the
	// file registry.
	MaxFileSize = 100 * KiB

	// MaxFilesPerUser caps the number of live entries a single owner
	// may hold in the file registry.
	MaxFilesPerUser = 10
)

// Wager bounds, in wei.
var (
	// MinBet is 0.001 ether
	MinBet = uint256.NewInt(1_000_000_000_000_000)

	// MaxBet is 1 ether
	MaxBet = uint256.NewInt(1_000_000_000_000_000_000)
)
