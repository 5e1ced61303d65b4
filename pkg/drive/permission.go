package drive

import (
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// CanAccess decides whether actor holds the requested capability on entry.
//
// Resolution runs in three tiers:
//  1. The owner is governed by the entry's ownerPermissions: access is
//     granted unless that capability was explicitly revoked.
//  2. A grantee is governed by their share grant alone. Unlisted
//     capabilities default to false, and the share capability itself is
//     never grantable.
//  3. Everyone else falls through to othersPermissions: default deny.
//
// The function is pure and uncached: shares can change between calls, so
// every check re-reads the entry's current state.
func CanAccess(entry *metadata.Entry, actor metadata.UserID, capability metadata.Capability) bool {
	if actor == entry.Owner {
		return entry.OwnerPermissions.Has(capability)
	}

	if grant, ok := entry.Shares[actor]; ok {
		return grant.Has(capability)
	}

	return entry.OthersPermissions.Has(capability)
}

// requireAccess returns a permission StoreError when CanAccess denies.
func requireAccess(entry *metadata.Entry, actor metadata.UserID, capability metadata.Capability) error {
	if !CanAccess(entry, actor, capability) {
		return metadata.NewPermissionDenied(entry.Path())
	}
	return nil
}
