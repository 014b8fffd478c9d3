// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/WilliamSmith5172078/sealed"
	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/engine"
)

// ImportFields verifies and imports externally produced ciphertexts
// into internal handles, then grants the owner and the registry itself
// permanent access to each. Either every field imports or none does:
// no grants are recorded for a batch that fails partway.
func ImportFields(
	eng engine.Engine,
	list *acl.List,
	owner common.Address,
	fields []sealed.ExternalField,
) (map[string]sealed.Handle, error) {
	handles := make(map[string]sealed.Handle, len(fields))
	for _, field := range fields {
		h, err := eng.FromExternal(field.Handle, field.Attestation, owner, field.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to import field %q: %w", field.Name, err)
		}
		handles[field.Name] = h
	}

	for _, h := range handles {
		list.Grant(h.ID, owner, acl.Permanent)
		list.Grant(h.ID, sealed.RegistryPrincipal, acl.Permanent)
	}
	return handles, nil
}
