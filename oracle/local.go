// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/engine"
	"github.com/WilliamSmith5172078/sealed/events"
)

// LocalOracle fulfills decryption requests in-process using a
// decryptor. It stands in for the committee in development builds and
// tests; production deployments run the share aggregator instead.
type LocalOracle struct {
	addr      common.Address
	decryptor engine.Decryptor
	coord     *decrypt.Coordinator
	log       log.Logger
}

// NewLocalOracle returns an oracle that answers requests with addr as
// its fulfillment identity.
func NewLocalOracle(
	addr common.Address,
	decryptor engine.Decryptor,
	coord *decrypt.Coordinator,
	logger log.Logger,
) *LocalOracle {
	return &LocalOracle{
		addr:      addr,
		decryptor: decryptor,
		coord:     coord,
		log:       logger,
	}
}

// Address returns the identity the oracle fulfills requests as.
func (o *LocalOracle) Address() common.Address {
	return o.addr
}

// FulfillRequest decrypts every handle of the identified request and
// reports the plaintexts to the coordinator.
func (o *LocalOracle) FulfillRequest(id ids.ID) error {
	req, ok := o.coord.Get(id)
	if !ok {
		return decrypt.ErrUnknownRequest
	}

	plaintexts := make([]uint64, len(req.Handles))
	for i, h := range req.Handles {
		value, err := o.decryptor.Decrypt(h)
		if err != nil {
			return err
		}
		plaintexts[i] = value
	}
	return o.coord.Fulfill(id, plaintexts, o.addr)
}

// Run services decryption request events from feed until ctx is
// canceled. Fulfillment failures are logged and skipped so one bad
// request cannot wedge the loop.
func (o *LocalOracle) Run(ctx context.Context, feed *events.Feed) {
	sub := feed.Subscribe(64)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-sub:
			if e.Type != events.DecryptionRequested {
				continue
			}
			if err := o.FulfillRequest(e.RequestID); err != nil {
				o.log.Warn("failed to fulfill decryption request",
					log.Stringer("requestID", e.RequestID),
					log.Err(err),
				)
			}
		}
	}
}
