// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/events"
	"github.com/WilliamSmith5172078/sealed/utils"
)

// RunnerConfig configures a committee-backed oracle runner.
type RunnerConfig struct {
	// Address is the identity the runner fulfills requests as. It must
	// match the coordinator's configured oracle.
	Address common.Address

	// Epoch selects the committee used for share collection.
	Epoch uint64

	// QuorumNum/QuorumDen is the required share weight fraction.
	QuorumNum uint64
	QuorumDen uint64

	// RetryTimeout bounds how long a single request is retried before
	// it is abandoned to expire on-ledger.
	RetryTimeout time.Duration
}

// Runner services coordinator requests through the share aggregator.
// One runner instance serves one coordinator.
type Runner struct {
	cfg        RunnerConfig
	aggregator *ShareAggregator
	coord      *decrypt.Coordinator
	log        log.Logger
}

// NewRunner returns a runner fulfilling requests through aggregator.
func NewRunner(cfg RunnerConfig, aggregator *ShareAggregator, coord *decrypt.Coordinator, logger log.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		aggregator: aggregator,
		coord:      coord,
		log:        logger,
	}
}

// Run services decryption request events from feed until ctx is
// canceled. Each request is aggregated and fulfilled on its own
// goroutine so a slow committee round does not block the feed.
func (r *Runner) Run(ctx context.Context, feed *events.Feed) {
	sub := feed.Subscribe(64)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-sub:
			if e.Type != events.DecryptionRequested {
				continue
			}
			go r.fulfill(ctx, e.RequestID)
		}
	}
}

func (r *Runner) fulfill(ctx context.Context, id ids.ID) {
	req, ok := r.coord.Get(id)
	if !ok {
		r.log.Warn("request event for unknown request",
			log.Stringer("requestID", id),
		)
		return
	}

	var plaintexts []uint64
	err := utils.WithRetriesTimeout(r.log, func() error {
		var aggErr error
		plaintexts, aggErr = r.aggregator.Aggregate(ctx, req, r.cfg.Epoch, r.cfg.QuorumNum, r.cfg.QuorumDen)
		return aggErr
	}, r.cfg.RetryTimeout)
	if err != nil {
		r.log.Warn("share aggregation failed",
			log.Stringer("requestID", id),
			log.Err(err),
		)
		return
	}

	if err := r.coord.Fulfill(id, plaintexts, r.cfg.Address); err != nil {
		r.log.Warn("failed to fulfill decryption request",
			log.Stringer("requestID", id),
			log.Err(err),
		)
	}
}
