// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/p2p"

	"github.com/WilliamSmith5172078/sealed/cache"
	"github.com/WilliamSmith5172078/sealed/engine"
)

// ErrUnknownRequestID is returned by a member refusing to decrypt for
// a request id it cannot attest is outstanding.
var ErrUnknownRequestID = errors.New("unknown request id")

// RequestVerifier checks that a share request corresponds to an
// outstanding coordinator request before any plaintext leaves the
// member. A nil verifier accepts everything, which is only acceptable
// in tests.
type RequestVerifier interface {
	VerifyRequest(ctx context.Context, req *ShareRequest) error
}

// ShareHandler answers share requests on a committee member: it
// decrypts the requested handles and signs the plaintexts with the
// member's key. Responses are cached per request id so retried
// requests do not repeat the decryption work.
type ShareHandler struct {
	decryptor engine.Decryptor
	sk        *bls.SecretKey
	verifier  RequestVerifier
	responses *cache.TTL[ids.ID, []byte]
}

// NewShareHandler creates a handler signing shares with sk.
func NewShareHandler(decryptor engine.Decryptor, sk *bls.SecretKey, verifier RequestVerifier) *ShareHandler {
	return &ShareHandler{
		decryptor: decryptor,
		sk:        sk,
		verifier:  verifier,
		responses: cache.NewTTL[ids.ID, []byte](time.Hour),
	}
}

// Request handles an incoming share request.
func (h *ShareHandler) Request(ctx context.Context, _ ids.NodeID, _ time.Time, requestBytes []byte) ([]byte, error) {
	req, err := UnmarshalShareRequest(requestBytes)
	if err != nil {
		return nil, err
	}
	if h.verifier != nil {
		if err := h.verifier.VerifyRequest(ctx, req); err != nil {
			return nil, err
		}
	}

	return h.responses.Get(req.RequestID, func(ids.ID) ([]byte, error) {
		plaintexts := make([]uint64, len(req.Handles))
		for i, handle := range req.Handles {
			value, err := h.decryptor.Decrypt(handle)
			if err != nil {
				return nil, err
			}
			plaintexts[i] = value
		}

		sig, err := h.sk.Sign(shareDigest(req.RequestID, plaintexts))
		if err != nil {
			return nil, err
		}
		return MarshalShareResponse(&ShareResponse{
			Plaintexts: plaintexts,
			Signature:  bls.SignatureToBytes(sig),
		})
	}, false)
}

// Ensure ShareHandlerAdapter implements p2p.Handler
var _ p2p.Handler = (*ShareHandlerAdapter)(nil)

// ShareHandlerAdapter adapts a ShareHandler to the p2p.Handler
// interface so it can be registered with the p2p router.
type ShareHandlerAdapter struct {
	handler *ShareHandler
}

// NewShareHandlerAdapter wraps handler for the p2p router.
func NewShareHandlerAdapter(handler *ShareHandler) *ShareHandlerAdapter {
	return &ShareHandlerAdapter{handler: handler}
}

// Gossip implements p2p.Handler. Share handlers do not use gossip.
func (a *ShareHandlerAdapter) Gossip(context.Context, ids.NodeID, []byte) {}

// Request implements p2p.Handler by delegating to the wrapped ShareHandler.
func (a *ShareHandlerAdapter) Request(ctx context.Context, nodeID ids.NodeID, deadline time.Time, requestBytes []byte) ([]byte, *p2p.Error) {
	response, err := a.handler.Request(ctx, nodeID, deadline, requestBytes)
	if err != nil {
		return nil, &p2p.Error{
			Code:    500,
			Message: err.Error(),
		}
	}
	return response, nil
}
