// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package decrypt

import (
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/engine"
	"github.com/WilliamSmith5172078/sealed/events"
)

var (
	oracleAddr = common.HexToAddress("0x42")
	requester  = common.HexToAddress("0x01")
	mallory    = common.HexToAddress("0x66")
)

const purposeTest Purpose = "test/reveal"

type harness struct {
	engine *engine.MockEngine
	list   *acl.List
	coord  *Coordinator
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	list := acl.New(nil)
	return &harness{
		engine: engine.NewMockEngine(),
		list:   list,
		coord:  New(cfg, list, events.NewFeed(log.NoLog{}, 16), log.NoLog{}),
	}
}

func (h *harness) grantedHandle(t *testing.T, value uint64) sealed.Handle {
	t.Helper()
	handle, err := h.engine.TrivialEncrypt(value, sealed.Uint32)
	require.NoError(t, err)
	h.list.Grant(handle.ID, requester, acl.Permanent)
	return handle
}

func TestRequestAndFulfill(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	handle := h.grantedHandle(t, 7)

	var got []uint64
	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle},
		func(plaintexts []uint64) error {
			got = plaintexts
			return nil
		}, nil)
	require.NoError(err)
	require.True(h.coord.Outstanding(1, purposeTest))

	require.NoError(h.coord.Fulfill(id, []uint64{7}, oracleAddr))
	require.Equal([]uint64{7}, got)
	require.False(h.coord.Outstanding(1, purposeTest))

	req, ok := h.coord.Get(id)
	require.True(ok)
	require.Equal(Fulfilled, req.State)
}

func TestRequestChecksEveryHandle(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	granted := h.grantedHandle(t, 1)

	// The second operand carries no grant for the requester. Passing it
	// through would let the requester learn a plaintext via composition.
	denied, err := h.engine.TrivialEncrypt(2, sealed.Uint32)
	require.NoError(err)

	_, err = h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{granted, denied}, nil, nil)
	require.ErrorIs(err, ErrNotAllowed)

	_, err = h.coord.RequestDecryption(requester, 1, purposeTest, nil, nil, nil)
	require.ErrorIs(err, ErrNoHandles)
}

func TestDuplicateRequest(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	handle := h.grantedHandle(t, 7)

	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)

	// Same entry and purpose: rejected while the first is outstanding.
	_, err = h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.ErrorIs(err, ErrDuplicateRequest)

	// A different purpose on the same entry is independent.
	_, err = h.coord.RequestDecryption(requester, 1, Purpose("test/other"),
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)

	// Settling the first frees the slot.
	require.NoError(h.coord.Fulfill(id, []uint64{7}, oracleAddr))
	_, err = h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)
}

func TestFulfillAuthorization(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	handle := h.grantedHandle(t, 7)

	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)

	require.ErrorIs(h.coord.Fulfill(id, []uint64{7}, mallory), ErrUnauthorizedCaller)
	require.NoError(h.coord.Fulfill(id, []uint64{7}, oracleAddr))
}

func TestFulfillReplayRejected(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	handle := h.grantedHandle(t, 7)

	calls := 0
	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle},
		func([]uint64) error {
			calls++
			return nil
		}, nil)
	require.NoError(err)

	require.NoError(h.coord.Fulfill(id, []uint64{7}, oracleAddr))

	// A replayed fulfillment, even with different plaintexts, must not
	// re-run the callback.
	require.ErrorIs(h.coord.Fulfill(id, []uint64{9}, oracleAddr), ErrUnknownRequest)
	require.Equal(1, calls)
}

func TestFulfillPlaintextCount(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	handle := h.grantedHandle(t, 7)

	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)

	require.ErrorIs(h.coord.Fulfill(id, []uint64{7, 8}, oracleAddr), ErrPlaintextCount)

	// The miscounted attempt must not settle the request.
	require.NoError(h.coord.Fulfill(id, []uint64{7}, oracleAddr))
}

func TestPermissiveCallers(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig(oracleAddr)
	cfg.PermissiveCallers = true
	h := newHarness(t, cfg)
	handle := h.grantedHandle(t, 7)

	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)
	require.NoError(h.coord.Fulfill(id, []uint64{7}, mallory))
}

func TestExpire(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig(oracleAddr)
	cfg.Deadline = time.Minute
	h := newHarness(t, cfg)
	handle := h.grantedHandle(t, 7)

	expired := false
	id, err := h.coord.RequestDecryption(requester, 1, purposeTest,
		[]sealed.Handle{handle},
		func([]uint64) error {
			t.Fatal("fulfillment callback after expiry")
			return nil
		},
		func() { expired = true })
	require.NoError(err)

	require.ErrorIs(h.coord.Expire(id, time.Now()), ErrDeadlineNotReached)

	// Anyone can expire once the deadline passes.
	require.NoError(h.coord.Expire(id, time.Now().Add(2*time.Minute)))
	require.True(expired)
	require.False(h.coord.Outstanding(1, purposeTest))

	// An expired request can no longer be fulfilled.
	require.ErrorIs(h.coord.Fulfill(id, []uint64{7}, oracleAddr), ErrUnknownRequest)

	req, ok := h.coord.Get(id)
	require.True(ok)
	require.Equal(Expired, req.State)
}

func TestRequestIDsEmbedEntry(t *testing.T) {
	require := require.New(t)

	h := newHarness(t, DefaultConfig(oracleAddr))
	handle := h.grantedHandle(t, 7)

	first, err := h.coord.RequestDecryption(requester, 3, purposeTest,
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)
	second, err := h.coord.RequestDecryption(requester, 3, Purpose("test/other"),
		[]sealed.Handle{handle}, nil, nil)
	require.NoError(err)

	require.NotEqual(first, second)
}
