// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package filestore implements the encrypted file registry. Content
// lives in an off-ledger blob store; the registry holds only the
// content reference plus encrypted size and visibility metadata,
// hidden from everyone but the owner until the owner makes the file
// public.
package filestore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/engine"
	"github.com/WilliamSmith5172078/sealed/events"
	"github.com/WilliamSmith5172078/sealed/registry"
)

var (
	ErrSizeExceeded  = errors.New("file size out of bounds")
	ErrQuotaExceeded = errors.New("file quota exceeded")
	ErrHandleAccess  = errors.New("caller lacks access to operand handle")
)

// PurposeSizeReveal is the decryption purpose for revealing a file's
// size to an authorized caller.
const PurposeSizeReveal decrypt.Purpose = "file/size-reveal"

// File is a registry entry. Size and visibility are encrypted handles;
// the plaintext declared size is validated at upload and discarded.
type File struct {
	ID         uint64
	Owner      common.Address
	Name       string
	ContentRef common.Hash

	// EncSize and EncVisible are replaced, never mutated: a visibility
	// change re-references fresh handles.
	EncSize    sealed.Handle
	EncVisible sealed.Handle

	Public     bool
	UploadedAt time.Time
}

// Snapshot is the read-only view returned to any caller.
type Snapshot struct {
	ID           uint64
	Owner        common.Address
	Name         string
	ContentRef   common.Hash
	EncSizeID    ids.ID
	EncVisibleID ids.ID
	Public       bool
	UploadedAt   time.Time
}

func (f *File) snapshot() Snapshot {
	return Snapshot{
		ID:           f.ID,
		Owner:        f.Owner,
		Name:         f.Name,
		ContentRef:   f.ContentRef,
		EncSizeID:    f.EncSize.ID,
		EncVisibleID: f.EncVisible.ID,
		Public:       f.Public,
		UploadedAt:   f.UploadedAt,
	}
}

// UserStats counts a user's registry activity. Counters only grow.
type UserStats struct {
	Uploads uint64
	Deletes uint64
}

// Config configures the file registry.
type Config struct {
	Admin           common.Address
	MaxFileSize     uint64
	MaxFilesPerUser int
}

// DefaultConfig returns the production registry configuration.
func DefaultConfig(admin common.Address) Config {
	return Config{
		Admin:           admin,
		MaxFileSize:     sealed.MaxFileSize,
		MaxFilesPerUser: sealed.MaxFilesPerUser,
	}
}

// Registry is the ledger-facing surface of the file store.
type Registry struct {
	cfg     Config
	engine  engine.Engine
	list    *acl.List
	coord   *decrypt.Coordinator
	emitter events.Emitter
	log     log.Logger

	store *registry.Store[File]

	// mu guards the owner index, stats and pending reservations.
	mu      sync.Mutex
	byOwner map[common.Address][]uint64
	pending map[common.Address]int
	stats   map[common.Address]*UserStats
}

// New creates an empty file registry.
func New(
	cfg Config,
	eng engine.Engine,
	list *acl.List,
	coord *decrypt.Coordinator,
	emitter events.Emitter,
	logger log.Logger,
) *Registry {
	return &Registry{
		cfg:     cfg,
		engine:  eng,
		list:    list,
		coord:   coord,
		emitter: emitter,
		log:     logger,
		store:   registry.New[File](cfg.Admin),
		byOwner: make(map[common.Address][]uint64),
		pending: make(map[common.Address]int),
		stats:   make(map[common.Address]*UserStats),
	}
}

// Upload registers a file whose size is sealed on-ledger by the
// registry itself. The declared size is validated against the size
// and quota caps, encrypted, and discarded.
func (r *Registry) Upload(
	owner common.Address,
	name string,
	size uint64,
	contentRef common.Hash,
) (uint64, error) {
	if err := r.checkLimits(owner, size); err != nil {
		return 0, err
	}

	encSize, err := r.engine.TrivialEncrypt(size, sealed.Uint32)
	if err != nil {
		r.releaseSlot(owner)
		return 0, fmt.Errorf("failed to seal size: %w", err)
	}
	return r.register(owner, name, encSize, contentRef)
}

// UploadExternal registers a file whose size ciphertext was produced
// off-ledger. The declared plaintext size still gates quota and size
// caps; the attested handle is what gets stored.
func (r *Registry) UploadExternal(
	owner common.Address,
	name string,
	declaredSize uint64,
	extSize sealed.ExternalHandle,
	att *sealed.Attestation,
	contentRef common.Hash,
) (uint64, error) {
	if err := r.checkLimits(owner, declaredSize); err != nil {
		return 0, err
	}

	handles, err := registry.ImportFields(r.engine, r.list, owner, []sealed.ExternalField{{
		Name:        "size",
		Handle:      extSize,
		Attestation: att,
		Kind:        sealed.Uint32,
	}})
	if err != nil {
		r.releaseSlot(owner)
		return 0, err
	}
	return r.register(owner, name, handles["size"], contentRef)
}

// checkLimits gates pause and size caps and reserves a quota slot for
// the owner. The reservation keeps the quota invariant under
// interleaved uploads and is released by releaseSlot on any failure
// after this point, or consumed when register appends to the index.
// The pause gate sits here so a rejected upload leaves no ACL grants
// behind.
func (r *Registry) checkLimits(owner common.Address, size uint64) error {
	if size == 0 || size > r.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes, cap %d", ErrSizeExceeded, size, r.cfg.MaxFileSize)
	}
	if r.store.Paused() {
		return registry.ErrPaused
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byOwner[owner])+r.pending[owner] >= r.cfg.MaxFilesPerUser {
		return fmt.Errorf("%w: %d files", ErrQuotaExceeded, len(r.byOwner[owner]))
	}
	r.pending[owner]++
	return nil
}

func (r *Registry) releaseSlot(owner common.Address) {
	r.mu.Lock()
	if r.pending[owner] > 0 {
		r.pending[owner]--
	}
	r.mu.Unlock()
}

func (r *Registry) register(
	owner common.Address,
	name string,
	encSize sealed.Handle,
	contentRef common.Hash,
) (uint64, error) {
	encVisible, err := r.engine.TrivialEncrypt(0, sealed.Bool)
	if err != nil {
		r.releaseSlot(owner)
		return 0, fmt.Errorf("failed to seal visibility: %w", err)
	}

	for _, h := range []sealed.Handle{encSize, encVisible} {
		r.list.Grant(h.ID, owner, acl.Permanent)
		r.list.Grant(h.ID, sealed.RegistryPrincipal, acl.Permanent)
	}

	id, err := r.store.Create(func(id uint64) *File {
		return &File{
			ID:         id,
			Owner:      owner,
			Name:       name,
			ContentRef: contentRef,
			EncSize:    encSize,
			EncVisible: encVisible,
			UploadedAt: time.Now(),
		}
	})
	if err != nil {
		r.releaseSlot(owner)
		return 0, err
	}

	r.mu.Lock()
	if r.pending[owner] > 0 {
		r.pending[owner]--
	}
	r.byOwner[owner] = append(r.byOwner[owner], id)
	r.statsLocked(owner).Uploads++
	r.mu.Unlock()

	r.emitter.Emit(events.Event{
		Type:      events.FileUploaded,
		EntryID:   id,
		Principal: owner,
		Handles:   []ids.ID{encSize.ID, encVisible.ID},
	})
	r.log.Info("file uploaded",
		log.Uint64("fileID", id),
		log.Stringer("owner", owner),
	)
	return id, nil
}

// SetVisibility flips a file between private and public. Making a
// file public flags its handles publicly decryptable; the flag on a
// handle is one-way, so going private again re-references fresh
// private handles rather than un-publishing the old ones.
func (r *Registry) SetVisibility(id uint64, caller common.Address, public bool) error {
	var handleIDs []ids.ID
	err := r.store.Update(id, func(f *File) error {
		if err := registry.Authorize(caller, f.Owner, r.cfg.Admin, registry.OwnerOrAdmin); err != nil {
			return err
		}
		if f.Public == public {
			return nil
		}

		if public {
			r.list.MakePublic(f.EncSize.ID)
			r.list.MakePublic(f.EncVisible.ID)
		} else {
			zero, err := r.engine.TrivialEncrypt(0, sealed.Uint32)
			if err != nil {
				return fmt.Errorf("failed to re-seal size: %w", err)
			}
			freshSize, err := r.engine.Add(f.EncSize, zero)
			if err != nil {
				return fmt.Errorf("failed to re-reference size: %w", err)
			}
			freshVisible, err := r.engine.TrivialEncrypt(0, sealed.Bool)
			if err != nil {
				return fmt.Errorf("failed to re-seal visibility: %w", err)
			}

			for _, h := range []sealed.Handle{freshSize, freshVisible} {
				r.list.Grant(h.ID, f.Owner, acl.Permanent)
				r.list.Grant(h.ID, sealed.RegistryPrincipal, acl.Permanent)
			}
			f.EncSize = freshSize
			f.EncVisible = freshVisible
		}

		f.Public = public
		handleIDs = []ids.ID{f.EncSize.ID, f.EncVisible.ID}
		return nil
	})
	if err != nil || handleIDs == nil {
		return err
	}

	r.emitter.Emit(events.Event{
		Type:      events.FileVisibilityChanged,
		EntryID:   id,
		Principal: caller,
		Handles:   handleIDs,
	})
	return nil
}

// Transfer hands the file to a new owner: the new owner is granted
// access to every encrypted field and the entry moves between owner
// indexes. Old-owner grants are left in place, matching the additive
// grant model.
func (r *Registry) Transfer(id uint64, caller, newOwner common.Address) error {
	var oldOwner common.Address
	err := r.store.Update(id, func(f *File) error {
		if err := registry.Authorize(caller, f.Owner, r.cfg.Admin, registry.OwnerOrAdmin); err != nil {
			return err
		}
		if newOwner == f.Owner {
			return nil
		}

		r.mu.Lock()
		if len(r.byOwner[newOwner])+r.pending[newOwner] >= r.cfg.MaxFilesPerUser {
			r.mu.Unlock()
			return fmt.Errorf("%w: recipient at %d files", ErrQuotaExceeded, r.cfg.MaxFilesPerUser)
		}
		r.mu.Unlock()

		r.list.Grant(f.EncSize.ID, newOwner, acl.Permanent)
		r.list.Grant(f.EncVisible.ID, newOwner, acl.Permanent)

		oldOwner = f.Owner
		f.Owner = newOwner

		r.mu.Lock()
		r.removeFromIndexLocked(oldOwner, id)
		r.byOwner[newOwner] = append(r.byOwner[newOwner], id)
		r.mu.Unlock()
		return nil
	})
	if err != nil || oldOwner == (common.Address{}) {
		return err
	}

	r.emitter.Emit(events.Event{
		Type:      events.FileTransferred,
		EntryID:   id,
		Principal: newOwner,
	})
	return nil
}

// Delete physically removes the file and cascade-revokes every grant
// on its handles. Destroyed ciphertexts must not stay reachable
// through stale grants.
func (r *Registry) Delete(id uint64, caller common.Address) error {
	var (
		owner   common.Address
		handles []ids.ID
	)
	err := r.store.Delete(id, func(f *File) error {
		if err := registry.Authorize(caller, f.Owner, r.cfg.Admin, registry.OwnerOrAdmin); err != nil {
			return err
		}

		owner = f.Owner
		handles = []ids.ID{f.EncSize.ID, f.EncVisible.ID}

		r.list.RevokeAll(f.EncSize.ID)
		r.list.RevokeAll(f.EncVisible.ID)

		r.mu.Lock()
		r.removeFromIndexLocked(owner, id)
		r.statsLocked(owner).Deletes++
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	r.emitter.Emit(events.Event{
		Type:      events.FileDeleted,
		EntryID:   id,
		Principal: caller,
		Handles:   handles,
	})
	return nil
}

// CompareSizes returns an encrypted bool handle for sizeA <= sizeB.
// The caller must hold access to BOTH operand handles; verifying only
// one operand would let a caller binary-search a stranger's file size.
func (r *Registry) CompareSizes(caller common.Address, idA, idB uint64) (sealed.Handle, error) {
	var a, b sealed.Handle
	if err := r.store.View(idA, func(f *File) error {
		a = f.EncSize
		return nil
	}); err != nil {
		return sealed.Handle{}, err
	}
	if err := r.store.View(idB, func(f *File) error {
		b = f.EncSize
		return nil
	}); err != nil {
		return sealed.Handle{}, err
	}

	if !r.list.IsAllowed(a.ID, caller) {
		return sealed.Handle{}, fmt.Errorf("%w: %s", ErrHandleAccess, a.ID)
	}
	if !r.list.IsAllowed(b.ID, caller) {
		return sealed.Handle{}, fmt.Errorf("%w: %s", ErrHandleAccess, b.ID)
	}

	result, err := r.engine.Le(a, b)
	if err != nil {
		return sealed.Handle{}, fmt.Errorf("failed to compare sizes: %w", err)
	}
	r.list.Grant(result.ID, caller, acl.Permanent)
	return result, nil
}

// RequestSizeReveal opens a decryption request for the file's size on
// behalf of caller. The caller must be allowed on the size handle.
// The owner always is, anyone is once the file is public. The
// plaintext reaches sink exactly once and is not retained.
func (r *Registry) RequestSizeReveal(id uint64, caller common.Address, sink func(size uint64)) (ids.ID, error) {
	var encSize sealed.Handle
	if err := r.store.View(id, func(f *File) error {
		encSize = f.EncSize
		return nil
	}); err != nil {
		return ids.Empty, err
	}

	return r.coord.RequestDecryption(
		caller,
		id,
		PurposeSizeReveal,
		[]sealed.Handle{encSize},
		func(plaintexts []uint64) error {
			if sink != nil {
				sink(plaintexts[0])
			}
			return nil
		},
		nil,
	)
}

// Get returns a read-only snapshot of the file, for any caller.
func (r *Registry) Get(id uint64) (Snapshot, error) {
	var snap Snapshot
	err := r.store.View(id, func(f *File) error {
		snap = f.snapshot()
		return nil
	})
	return snap, err
}

// FilesOf returns the ids of the live files owned by owner.
func (r *Registry) FilesOf(owner common.Address) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint64, len(r.byOwner[owner]))
	copy(out, r.byOwner[owner])
	return out
}

// Stats returns the activity counters for owner.
func (r *Registry) Stats(owner common.Address) UserStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[owner]
	if !ok {
		return UserStats{}
	}
	return *s
}

// Pause stops all mutating operations. Admin only.
func (r *Registry) Pause(caller common.Address) error {
	return r.store.Pause(caller)
}

// Unpause resumes mutating operations. Admin only.
func (r *Registry) Unpause(caller common.Address) error {
	return r.store.Unpause(caller)
}

// removeFromIndexLocked drops id from owner's index with a linear
// scan. The per-user cap keeps the list small; the index never holds
// duplicates. Caller holds r.mu.
func (r *Registry) removeFromIndexLocked(owner common.Address, id uint64) {
	files := r.byOwner[owner]
	for i, fid := range files {
		if fid == id {
			files[i] = files[len(files)-1]
			r.byOwner[owner] = files[:len(files)-1]
			return
		}
	}
}

// statsLocked returns the mutable stats entry. Caller holds r.mu.
func (r *Registry) statsLocked(owner common.Address) *UserStats {
	s, ok := r.stats[owner]
	if !ok {
		s = &UserStats{}
		r.stats[owner] = s
	}
	return s
}
