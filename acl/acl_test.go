// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package acl

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	granted int
	revoked int
	public  int
}

func (o *recordingObserver) AccessGranted(ids.ID, common.Address, Scope) { o.granted++ }
func (o *recordingObserver) AccessRevoked(ids.ID, common.Address)       { o.revoked++ }
func (o *recordingObserver) MadePublic(ids.ID)                          { o.public++ }

func TestGrantIdempotent(t *testing.T) {
	require := require.New(t)

	observer := &recordingObserver{}
	list := New(observer)
	handle := ids.GenerateTestID()
	alice := common.HexToAddress("0x01")

	list.Grant(handle, alice, Permanent)
	list.Grant(handle, alice, Permanent)

	require.True(list.IsAllowed(handle, alice))
	require.Equal(1, list.Len())
	require.Equal(1, observer.granted)
}

func TestPermanentNotDowngraded(t *testing.T) {
	require := require.New(t)

	list := New(nil)
	handle := ids.GenerateTestID()
	alice := common.HexToAddress("0x01")

	list.Grant(handle, alice, Permanent)
	list.Grant(handle, alice, Transient)
	list.RevokeAll(handle)

	// A fresh Permanent grant must still be recordable after revocation.
	list.Grant(handle, alice, Permanent)
	require.True(list.IsAllowed(handle, alice))
}

func TestIsAllowed(t *testing.T) {
	require := require.New(t)

	list := New(nil)
	handle := ids.GenerateTestID()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	require.False(list.IsAllowed(handle, alice))

	list.Grant(handle, alice, Transient)
	require.True(list.IsAllowed(handle, alice))
	require.False(list.IsAllowed(handle, bob))
}

func TestMakePublicOneWay(t *testing.T) {
	require := require.New(t)

	observer := &recordingObserver{}
	list := New(observer)
	handle := ids.GenerateTestID()
	stranger := common.HexToAddress("0xff")

	require.False(list.IsPublic(handle))

	list.MakePublic(handle)
	list.MakePublic(handle)

	require.True(list.IsPublic(handle))
	require.True(list.IsAllowed(handle, stranger))
	require.Equal(1, observer.public)

	// Public survives a revocation sweep on the same handle.
	list.RevokeAll(handle)
	require.True(list.IsPublic(handle))
	require.True(list.IsAllowed(handle, stranger))
}

func TestRevokeAll(t *testing.T) {
	require := require.New(t)

	observer := &recordingObserver{}
	list := New(observer)
	handle := ids.GenerateTestID()
	other := ids.GenerateTestID()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	list.Grant(handle, alice, Permanent)
	list.Grant(handle, bob, Transient)
	list.Grant(other, alice, Permanent)

	list.RevokeAll(handle)

	require.False(list.IsAllowed(handle, alice))
	require.False(list.IsAllowed(handle, bob))
	require.True(list.IsAllowed(other, alice))
	require.Equal(2, observer.revoked)
	require.Equal(1, list.Len())
}
