// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/engine"
)

func TestImportFields(t *testing.T) {
	require := require.New(t)

	eng := engine.NewMockEngine()
	list := acl.New(nil)

	extA, attA := eng.EncryptExternal(1, owner)
	extB, attB := eng.EncryptExternal(2, owner)

	handles, err := ImportFields(eng, list, owner, []sealed.ExternalField{
		{Name: "a", Handle: extA, Attestation: attA, Kind: sealed.Uint32},
		{Name: "b", Handle: extB, Attestation: attB, Kind: sealed.Uint32},
	})
	require.NoError(err)
	require.Len(handles, 2)

	for _, h := range handles {
		require.True(list.IsAllowed(h.ID, owner))
		require.True(list.IsAllowed(h.ID, sealed.RegistryPrincipal))
		require.False(list.IsAllowed(h.ID, other))
	}
}

func TestImportFieldsAllOrNothing(t *testing.T) {
	require := require.New(t)

	eng := engine.NewMockEngine()
	list := acl.New(nil)

	extGood, attGood := eng.EncryptExternal(1, owner)
	extBad, _ := eng.EncryptExternal(2, owner)

	_, err := ImportFields(eng, list, owner, []sealed.ExternalField{
		{Name: "good", Handle: extGood, Attestation: attGood, Kind: sealed.Uint32},
		{Name: "bad", Handle: extBad, Attestation: nil, Kind: sealed.Uint32},
	})
	require.ErrorIs(err, sealed.ErrAttestationInvalid)

	// The failed batch must leave no grants behind.
	require.Equal(0, list.Len())
}
