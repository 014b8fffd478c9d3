// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle implements the off-ledger decryption service: a
// client that collects threshold decryption shares from a BLS
// committee and reports the agreed plaintexts back to the on-ledger
// coordinator, plus a single-node local oracle for development.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
	"github.com/luxfi/p2p"

	"github.com/WilliamSmith5172078/sealed/cache"
	"github.com/WilliamSmith5172078/sealed/decrypt"
)

var (
	errFailedVerification = errors.New("failed share verification")
	errMismatchedShare    = errors.New("share disagrees with accepted plaintexts")

	// ErrNoQuorum is returned when the committee round ends below the
	// quorum threshold.
	ErrNoQuorum = errors.New("insufficient share weight")
)

// Member is a decryption committee member.
type Member struct {
	NodeID    ids.NodeID
	PublicKey *bls.PublicKey
	Weight    uint64
}

// CommitteeSource resolves the committee for an epoch. Lookups are
// cached; committees only change at epoch boundaries.
type CommitteeSource interface {
	GetCommittee(epoch uint64) ([]*Member, error)
}

type indexedMember struct {
	*Member
	Index int
}

type shareResult struct {
	NodeID     ids.NodeID
	Member     indexedMember
	Plaintexts []uint64
	Err        error
}

// NewShareAggregator returns an instance of ShareAggregator
func NewShareAggregator(logger log.Logger, client *p2p.Client, source CommitteeSource) *ShareAggregator {
	return &ShareAggregator{
		log:       logger,
		client:    client,
		source:    source,
		committee: cache.NewTTL[uint64, []*Member](10 * time.Minute),
	}
}

// ShareAggregator collects decryption shares for coordinator requests
type ShareAggregator struct {
	log       log.Logger
	client    *p2p.Client
	source    CommitteeSource
	committee *cache.TTL[uint64, []*Member]
}

// Aggregate blocks until quorumNum/quorumDen of committee weight has
// reported matching plaintexts for the request, or the context is
// canceled. It returns the agreed plaintexts.
func (s *ShareAggregator) Aggregate(
	ctx context.Context,
	req decrypt.Request,
	epoch uint64,
	quorumNum uint64,
	quorumDen uint64,
) ([]uint64, error) {
	members, err := s.committee.Get(epoch, s.source.GetCommittee, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get committee: %w", err)
	}

	requestBytes, err := MarshalShareRequest(&ShareRequest{
		RequestID: req.ID,
		Handles:   req.Handles,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal share request: %w", err)
	}

	nodeIDsToMember := make(map[ids.NodeID]indexedMember)
	nodeIDs := make([]ids.NodeID, 0, len(members))
	var totalWeight uint64
	for i, member := range members {
		totalWeight += member.Weight
		nodeIDsToMember[member.NodeID] = indexedMember{
			Index:  i,
			Member: member,
		}
		nodeIDs = append(nodeIDs, member.NodeID)
	}

	results := make(chan shareResult)
	handler := shareResponseHandler{
		requestID:        req.ID,
		nodeIDsToMembers: nodeIDsToMember,
		results:          results,
	}

	if err := s.client.Request(ctx, set.Of(nodeIDs...), requestBytes, handler.HandleResponse); err != nil {
		return nil, fmt.Errorf("failed to send share request: %w", err)
	}

	var (
		responders = set.NewBits()
		accepted   []uint64
		weight     uint64
	)
	for i := 0; i < len(members); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-results:
			if result.Err != nil {
				s.log.Debug("dropping share",
					log.Stringer("nodeID", result.NodeID),
					log.Err(result.Err),
				)
				continue
			}
			if responders.Contains(result.Member.Index) {
				s.log.Debug("dropping duplicate share",
					log.Stringer("nodeID", result.NodeID),
				)
				continue
			}
			if accepted == nil {
				accepted = result.Plaintexts
			} else if !equalPlaintexts(accepted, result.Plaintexts) {
				s.log.Warn("dropping disagreeing share",
					log.Stringer("nodeID", result.NodeID),
					log.Err(errMismatchedShare),
				)
				continue
			}

			responders.Add(result.Member.Index)
			weight += result.Member.Weight

			// weight/totalWeight >= quorumNum/quorumDen
			if weight*quorumDen >= quorumNum*totalWeight {
				return accepted, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %d of %d", ErrNoQuorum, weight, totalWeight)
}

func equalPlaintexts(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type shareResponseHandler struct {
	requestID        ids.ID
	nodeIDsToMembers map[ids.NodeID]indexedMember
	results          chan shareResult
}

// HandleResponse verifies a member's share signature before passing it
// on. Unknown responders and bad signatures are dropped, not fatal.
func (h *shareResponseHandler) HandleResponse(
	_ context.Context,
	nodeID ids.NodeID,
	responseBytes []byte,
	err error,
) {
	member, ok := h.nodeIDsToMembers[nodeID]
	if !ok {
		return
	}
	if err != nil {
		h.results <- shareResult{NodeID: nodeID, Member: member, Err: err}
		return
	}

	response, err := UnmarshalShareResponse(responseBytes)
	if err != nil {
		h.results <- shareResult{NodeID: nodeID, Member: member, Err: err}
		return
	}

	signature, err := bls.SignatureFromBytes(response.Signature)
	if err != nil {
		h.results <- shareResult{NodeID: nodeID, Member: member, Err: err}
		return
	}

	if !bls.Verify(member.PublicKey, signature, shareDigest(h.requestID, response.Plaintexts)) {
		h.results <- shareResult{NodeID: nodeID, Member: member, Err: errFailedVerification}
		return
	}

	h.results <- shareResult{NodeID: nodeID, Member: member, Plaintexts: response.Plaintexts}
}
