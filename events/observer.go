// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/WilliamSmith5172078/sealed/acl"
)

var _ acl.Observer = (*AccessObserver)(nil)

// AccessObserver bridges access-control changes onto an emitter.
type AccessObserver struct {
	Emitter Emitter
}

// AccessGranted implements acl.Observer
func (o *AccessObserver) AccessGranted(handle ids.ID, principal common.Address, _ acl.Scope) {
	o.Emitter.Emit(Event{
		Type:      AccessGranted,
		Principal: principal,
		Handles:   []ids.ID{handle},
	})
}

// AccessRevoked implements acl.Observer
func (o *AccessObserver) AccessRevoked(handle ids.ID, principal common.Address) {
	o.Emitter.Emit(Event{
		Type:      AccessRevoked,
		Principal: principal,
		Handles:   []ids.ID{handle},
	})
}

// MadePublic implements acl.Observer
func (o *AccessObserver) MadePublic(handle ids.ID) {
	o.Emitter.Emit(Event{
		Type:    HandlePublic,
		Handles: []ids.ID{handle},
	})
}
