// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package filestore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/engine"
	"github.com/WilliamSmith5172078/sealed/events"
	"github.com/WilliamSmith5172078/sealed/oracle"
	"github.com/WilliamSmith5172078/sealed/registry"
)

var (
	admin      = common.HexToAddress("0xad")
	alice      = common.HexToAddress("0x01")
	bob        = common.HexToAddress("0x02")
	oracleAddr = common.HexToAddress("0x42")
)

type fixture struct {
	engine *engine.MockEngine
	list   *acl.List
	feed   *events.Feed
	coord  *decrypt.Coordinator
	oracle *oracle.LocalOracle
	reg    *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	eng := engine.NewMockEngine()
	feed := events.NewFeed(log.NoLog{}, 128)
	list := acl.New(&events.AccessObserver{Emitter: feed})
	coord := decrypt.New(decrypt.DefaultConfig(oracleAddr), list, feed, log.NoLog{})

	return &fixture{
		engine: eng,
		list:   list,
		feed:   feed,
		coord:  coord,
		oracle: oracle.NewLocalOracle(oracleAddr, eng, coord, log.NoLog{}),
		reg:    New(DefaultConfig(admin), eng, list, coord, feed, log.NoLog{}),
	}
}

func (f *fixture) upload(t *testing.T, owner common.Address, name string, size uint64) uint64 {
	t.Helper()
	id, err := f.reg.Upload(owner, name, size, common.BytesToHash(crypto.Keccak256([]byte(name))))
	require.NoError(t, err)
	return id
}

func TestUploadRoundTrip(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	ref := common.BytesToHash(crypto.Keccak256([]byte("report.pdf")))
	id, err := f.reg.Upload(alice, "report.pdf", 1024, ref)
	require.NoError(err)

	snap, err := f.reg.Get(id)
	require.NoError(err)
	require.Equal(alice, snap.Owner)
	require.Equal("report.pdf", snap.Name)
	require.Equal(ref, snap.ContentRef)
	require.False(snap.Public)

	// The handles are owner-readable, not world-readable.
	require.True(f.list.IsAllowed(snap.EncSizeID, alice))
	require.False(f.list.IsAllowed(snap.EncSizeID, bob))

	require.Equal([]uint64{id}, f.reg.FilesOf(alice))
	require.Equal(uint64(1), f.reg.Stats(alice).Uploads)
}

func TestUploadExternal(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	ext, att := f.engine.EncryptExternal(2048, alice)

	id, err := f.reg.UploadExternal(alice, "sealed.bin", 2048, ext, att, common.BytesToHash(crypto.Keccak256([]byte("sealed.bin"))))
	require.NoError(err)

	var revealed uint64
	_, err = f.reg.RequestSizeReveal(id, alice, func(size uint64) { revealed = size })
	require.NoError(err)
	f.pumpOracle(t)
	require.Equal(uint64(2048), revealed)

	// The declared size still gates the cap even for external handles.
	ext, att = f.engine.EncryptExternal(1, alice)
	_, err = f.reg.UploadExternal(alice, "huge.bin", sealed.MaxFileSize+1, ext, att, common.Hash{})
	require.ErrorIs(err, ErrSizeExceeded)

	// A rejected import releases its quota slot: the owner can still
	// fill the remaining quota afterwards.
	ext, _ = f.engine.EncryptExternal(64, alice)
	_, err = f.reg.UploadExternal(alice, "forged.bin", 64, ext, nil, common.Hash{})
	require.ErrorIs(err, sealed.ErrAttestationInvalid)
	for i := len(f.reg.FilesOf(alice)); i < sealed.MaxFilesPerUser; i++ {
		f.upload(t, alice, fmt.Sprintf("fill-%d", i), 100)
	}
	require.Len(f.reg.FilesOf(alice), sealed.MaxFilesPerUser)
}

func TestSizeLimits(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)

	// Exactly at the cap is fine; one past it is not.
	_, err := f.reg.Upload(alice, "max.bin", sealed.MaxFileSize, common.Hash{})
	require.NoError(err)

	_, err = f.reg.Upload(alice, "over.bin", sealed.MaxFileSize+1, common.Hash{})
	require.ErrorIs(err, ErrSizeExceeded)

	_, err = f.reg.Upload(alice, "empty.bin", 0, common.Hash{})
	require.ErrorIs(err, ErrSizeExceeded)
}

func TestQuota(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	for i := 0; i < sealed.MaxFilesPerUser; i++ {
		f.upload(t, alice, fmt.Sprintf("file-%d", i), 100)
	}

	_, err := f.reg.Upload(alice, "one-too-many", 100, common.Hash{})
	require.ErrorIs(err, ErrQuotaExceeded)

	// Deleting frees a slot; the live count never exceeds the cap.
	ids := f.reg.FilesOf(alice)
	require.NoError(f.reg.Delete(ids[0], alice))
	_, err = f.reg.Upload(alice, "replacement", 100, common.Hash{})
	require.NoError(err)
	require.Len(f.reg.FilesOf(alice), sealed.MaxFilesPerUser)
}

func TestQuotaConcurrentUploads(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)

	// Twice the cap, racing. The slot reservation in checkLimits keeps
	// the index at the cap no matter how the uploads interleave.
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < 2*sealed.MaxFilesPerUser; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.reg.Upload(alice, fmt.Sprintf("burst-%d", i), 100, common.Hash{})
			switch {
			case err == nil:
				succeeded.Add(1)
			case !errors.Is(err, ErrQuotaExceeded):
				t.Errorf("unexpected upload error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(sealed.MaxFilesPerUser, succeeded.Load())
	require.Len(f.reg.FilesOf(alice), sealed.MaxFilesPerUser)
	require.EqualValues(sealed.MaxFilesPerUser, f.reg.Stats(alice).Uploads)
}

func TestSetVisibility(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	id := f.upload(t, alice, "shared.txt", 512)

	require.ErrorIs(f.reg.SetVisibility(id, bob, true), registry.ErrUnauthorized)

	require.NoError(f.reg.SetVisibility(id, alice, true))
	snap, err := f.reg.Get(id)
	require.NoError(err)
	require.True(snap.Public)
	require.True(f.list.IsPublic(snap.EncSizeID))

	// Anyone can now ask for the size.
	var revealed uint64
	_, err = f.reg.RequestSizeReveal(id, bob, func(size uint64) { revealed = size })
	require.NoError(err)
	f.pumpOracle(t)
	require.Equal(uint64(512), revealed)

	// Going private again re-references fresh handles; the published
	// ones stay public but are no longer what the entry points at.
	publicSizeID := snap.EncSizeID
	require.NoError(f.reg.SetVisibility(id, alice, false))

	snap, err = f.reg.Get(id)
	require.NoError(err)
	require.False(snap.Public)
	require.NotEqual(publicSizeID, snap.EncSizeID)
	require.False(f.list.IsPublic(snap.EncSizeID))
	require.True(f.list.IsAllowed(snap.EncSizeID, alice))
	require.False(f.list.IsAllowed(snap.EncSizeID, bob))
}

func TestTransfer(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	id := f.upload(t, alice, "handover.doc", 256)

	require.ErrorIs(f.reg.Transfer(id, bob, bob), registry.ErrUnauthorized)
	require.NoError(f.reg.Transfer(id, alice, bob))

	snap, err := f.reg.Get(id)
	require.NoError(err)
	require.Equal(bob, snap.Owner)
	require.True(f.list.IsAllowed(snap.EncSizeID, bob))

	// The entry lives in exactly one owner index.
	require.Empty(f.reg.FilesOf(alice))
	require.Equal([]uint64{id}, f.reg.FilesOf(bob))

	// The new owner controls the file now.
	require.ErrorIs(f.reg.Delete(id, alice), registry.ErrUnauthorized)
	require.NoError(f.reg.Delete(id, bob))
}

func TestTransferRecipientQuota(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	for i := 0; i < sealed.MaxFilesPerUser; i++ {
		f.upload(t, bob, fmt.Sprintf("b-%d", i), 100)
	}
	id := f.upload(t, alice, "overflow.txt", 100)

	require.ErrorIs(f.reg.Transfer(id, alice, bob), ErrQuotaExceeded)

	// The failed transfer left ownership and indexes untouched.
	snap, err := f.reg.Get(id)
	require.NoError(err)
	require.Equal(alice, snap.Owner)
	require.Equal([]uint64{id}, f.reg.FilesOf(alice))
}

func TestDeleteCascadesRevocation(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	id := f.upload(t, alice, "secret.key", 64)

	snap, err := f.reg.Get(id)
	require.NoError(err)
	require.True(f.list.IsAllowed(snap.EncSizeID, alice))

	require.NoError(f.reg.Delete(id, alice))

	// Destroyed ciphertexts must not stay reachable through old grants.
	require.False(f.list.IsAllowed(snap.EncSizeID, alice))
	require.False(f.list.IsAllowed(snap.EncSizeID, sealed.RegistryPrincipal))
	require.False(f.list.IsAllowed(snap.EncVisibleID, alice))

	_, err = f.reg.Get(id)
	require.ErrorIs(err, registry.ErrNotFound)
	require.Empty(f.reg.FilesOf(alice))
	require.Equal(uint64(1), f.reg.Stats(alice).Deletes)
}

func TestCompareSizes(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	idA := f.upload(t, alice, "small.txt", 100)
	idB := f.upload(t, bob, "large.txt", 200)

	// Neither party holds both operand handles: the comparison must be
	// refused for each of them, not quietly served against the one
	// handle they do hold.
	_, err := f.reg.CompareSizes(alice, idA, idB)
	require.ErrorIs(err, ErrHandleAccess)
	_, err = f.reg.CompareSizes(bob, idA, idB)
	require.ErrorIs(err, ErrHandleAccess)

	// Once bob shares his size handle, alice can compare.
	snapB, err := f.reg.Get(idB)
	require.NoError(err)
	f.list.Grant(snapB.EncSizeID, alice, acl.Permanent)

	result, err := f.reg.CompareSizes(alice, idA, idB)
	require.NoError(err)
	require.Equal(sealed.Bool, result.Kind)
	require.True(f.list.IsAllowed(result.ID, alice))

	value, err := f.engine.Decrypt(result)
	require.NoError(err)
	require.Equal(uint64(1), value) // 100 <= 200
}

func TestSizeRevealRequiresAccess(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	id := f.upload(t, alice, "private.txt", 128)

	_, err := f.reg.RequestSizeReveal(id, bob, nil)
	require.ErrorIs(err, decrypt.ErrNotAllowed)

	// A second reveal for the same file while one is outstanding is a
	// duplicate.
	_, err = f.reg.RequestSizeReveal(id, alice, nil)
	require.NoError(err)
	_, err = f.reg.RequestSizeReveal(id, alice, nil)
	require.ErrorIs(err, decrypt.ErrDuplicateRequest)
}

func TestPause(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	id := f.upload(t, alice, "frozen.txt", 128)

	require.NoError(f.reg.Pause(admin))

	// Rejected uploads must leave no trace, ACL grants included.
	grantsBefore := f.list.Len()
	_, err := f.reg.Upload(alice, "during-pause", 100, common.Hash{})
	require.ErrorIs(err, registry.ErrPaused)

	ext, att := f.engine.EncryptExternal(512, alice)
	_, err = f.reg.UploadExternal(alice, "during-pause.bin", 512, ext, att, common.Hash{})
	require.ErrorIs(err, registry.ErrPaused)
	require.Equal(grantsBefore, f.list.Len())

	require.ErrorIs(f.reg.Delete(id, alice), registry.ErrPaused)

	_, err = f.reg.Get(id)
	require.NoError(err)

	require.NoError(f.reg.Unpause(admin))
	require.NoError(f.reg.Delete(id, alice))
}

// pumpOracle answers every outstanding decryption request recorded in
// the event history.
func (f *fixture) pumpOracle(t *testing.T) {
	t.Helper()
	for _, e := range f.feed.Recent() {
		if e.Type != events.DecryptionRequested {
			continue
		}
		if req, ok := f.coord.Get(e.RequestID); ok && req.State == decrypt.Requested {
			require.NoError(t, f.oracle.FulfillRequest(e.RequestID))
		}
	}
}
