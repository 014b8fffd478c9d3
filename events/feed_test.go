// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/WilliamSmith5172078/sealed/acl"
)

func TestFeedFanOut(t *testing.T) {
	require := require.New(t)

	feed := NewFeed(log.NoLog{}, 8)
	first := feed.Subscribe(4)
	second := feed.Subscribe(4)

	feed.Emit(Event{Type: EntryCreated, EntryID: 1})

	e := <-first
	require.Equal(EntryCreated, e.Type)
	require.Equal(uint64(1), e.EntryID)
	require.False(e.Time.IsZero())

	e = <-second
	require.Equal(EntryCreated, e.Type)
}

func TestFeedDropsForSlowSubscriber(t *testing.T) {
	require := require.New(t)

	feed := NewFeed(log.NoLog{}, 8)
	slow := feed.Subscribe(1)

	// The second emit overflows the buffer; it must not block.
	feed.Emit(Event{Type: EntryCreated, EntryID: 1})
	feed.Emit(Event{Type: EntryJoined, EntryID: 1})

	e := <-slow
	require.Equal(EntryCreated, e.Type)
	select {
	case e := <-slow:
		t.Fatalf("unexpected buffered event %s", e.Type)
	default:
	}

	// History still holds both.
	require.Len(feed.Recent(), 2)
}

func TestFeedHistory(t *testing.T) {
	require := require.New(t)

	feed := NewFeed(log.NoLog{}, 2)
	for i := uint64(1); i <= 3; i++ {
		feed.Emit(Event{Type: EntryCreated, EntryID: i})
	}

	recent := feed.Recent()
	require.Len(recent, 2)
	require.Equal(uint64(2), recent[0].EntryID)
	require.Equal(uint64(3), recent[1].EntryID)
}

func TestEventTypeStrings(t *testing.T) {
	require := require.New(t)

	require.Equal("entry_created", EntryCreated.String())
	require.Equal("decryption_requested", DecryptionRequested.String())
	require.Equal("handle_public", HandlePublic.String())
	require.Equal("unknown", Type(0xff).String())
}

func TestAccessObserver(t *testing.T) {
	require := require.New(t)

	feed := NewFeed(log.NoLog{}, 8)
	observer := &AccessObserver{Emitter: feed}

	principal := common.HexToAddress("0x01")
	handle := ids.GenerateTestID()
	observer.AccessGranted(handle, principal, acl.Permanent)
	observer.AccessRevoked(handle, principal)
	observer.MadePublic(handle)

	recent := feed.Recent()
	require.Len(recent, 3)
	require.Equal(AccessGranted, recent[0].Type)
	require.Equal(principal, recent[0].Principal)
	require.Equal(AccessRevoked, recent[1].Type)
	require.Equal(HandlePublic, recent[2].Type)
}
