package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

func entryWith(owner metadata.UserID, ownerPerms, othersPerms metadata.Capabilities, shares map[metadata.UserID]metadata.ShareGrant) *metadata.Entry {
	return &metadata.Entry{
		ID:                metadata.NewEntryID(),
		Name:              "file.txt",
		ParentPath:        "/",
		Kind:              metadata.KindFile,
		Owner:             owner,
		OwnerPermissions:  ownerPerms,
		OthersPermissions: othersPerms,
		Shares:            shares,
	}
}

func TestCanAccessOwner(t *testing.T) {
	t.Run("OwnerDefaultsToAll", func(t *testing.T) {
		e := entryWith("alice", metadata.AllCapabilities(), metadata.Capabilities{}, nil)

		for _, c := range []metadata.Capability{
			metadata.CapabilityRead, metadata.CapabilityWrite,
			metadata.CapabilityDelete, metadata.CapabilityShare,
		} {
			assert.True(t, CanAccess(e, "alice", c), "capability %s", c)
		}
	})

	t.Run("ExplicitFalseBindsOwner", func(t *testing.T) {
		perms := metadata.AllCapabilities()
		perms.Delete = false
		e := entryWith("alice", perms, metadata.Capabilities{}, nil)

		// Ownership alone does not override the explicit restriction.
		assert.False(t, CanAccess(e, "alice", metadata.CapabilityDelete))
		assert.True(t, CanAccess(e, "alice", metadata.CapabilityRead))
	})

	t.Run("OwnerIgnoresSharesAndOthers", func(t *testing.T) {
		perms := metadata.AllCapabilities()
		perms.Write = false
		e := entryWith("alice", perms,
			metadata.Capabilities{Write: true},
			map[metadata.UserID]metadata.ShareGrant{"alice": {Write: true}})

		// Tier one decides for the owner; later tiers never apply.
		assert.False(t, CanAccess(e, "alice", metadata.CapabilityWrite))
	})
}

func TestCanAccessGrantee(t *testing.T) {
	e := entryWith("alice", metadata.AllCapabilities(), metadata.Capabilities{Read: true},
		map[metadata.UserID]metadata.ShareGrant{
			"bob": {Read: true, Write: true},
		})

	t.Run("GrantFlagsApply", func(t *testing.T) {
		assert.True(t, CanAccess(e, "bob", metadata.CapabilityRead))
		assert.True(t, CanAccess(e, "bob", metadata.CapabilityWrite))
		assert.False(t, CanAccess(e, "bob", metadata.CapabilityDelete))
	})

	t.Run("ShareCapabilityNeverGranted", func(t *testing.T) {
		assert.False(t, CanAccess(e, "bob", metadata.CapabilityShare))
	})

	t.Run("GrantShadowsOthersPolicy", func(t *testing.T) {
		// carol has an empty grant; the others policy (read allowed)
		// does not apply to a grantee.
		shadowed := entryWith("alice", metadata.AllCapabilities(), metadata.Capabilities{Read: true},
			map[metadata.UserID]metadata.ShareGrant{"carol": {}})

		assert.False(t, CanAccess(shadowed, "carol", metadata.CapabilityRead))
	})
}

func TestCanAccessOthers(t *testing.T) {
	t.Run("DefaultDeny", func(t *testing.T) {
		e := entryWith("alice", metadata.AllCapabilities(), metadata.Capabilities{}, nil)

		assert.False(t, CanAccess(e, "stranger", metadata.CapabilityRead))
		assert.False(t, CanAccess(e, "stranger", metadata.CapabilityWrite))
	})

	t.Run("ExplicitOthersPolicy", func(t *testing.T) {
		e := entryWith("alice", metadata.AllCapabilities(), metadata.Capabilities{Read: true}, nil)

		assert.True(t, CanAccess(e, "stranger", metadata.CapabilityRead))
		assert.False(t, CanAccess(e, "stranger", metadata.CapabilityWrite))
	})
}
