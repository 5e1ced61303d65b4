package drive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

func TestShare(t *testing.T) {
	ctx := context.Background()

	t.Run("GrantRecordedWithTimestamp", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		v := h.provision(t, "reader", 1000)
		file := h.mustCreateFile(t, u, "/", "f.txt", "x")

		shared, err := h.drive.Share(ctx, u, file.ID, v, metadata.ShareGrant{Read: true})
		require.NoError(t, err)

		grant, ok := shared.Shares[v]
		require.True(t, ok)
		assert.True(t, grant.Read)
		assert.False(t, grant.Write)
		assert.Equal(t, h.clock.Now(), grant.GrantedAt)
	})

	t.Run("RegrantReplacesPreviousGrant", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		v := h.provision(t, "reader", 1000)
		file := h.mustCreateFile(t, u, "/", "f.txt", "x")

		_, err := h.drive.Share(ctx, u, file.ID, v, metadata.ShareGrant{Read: true, Write: true})
		require.NoError(t, err)

		// A single grant per grantee, last write wins.
		shared, err := h.drive.Share(ctx, u, file.ID, v, metadata.ShareGrant{Read: true})
		require.NoError(t, err)
		require.Len(t, shared.Shares, 1)
		assert.False(t, shared.Shares[v].Write)

		assert.False(t, CanAccess(shared, v, metadata.CapabilityWrite))
		assert.True(t, CanAccess(shared, v, metadata.CapabilityRead))
	})

	t.Run("CannotShareWithOwner", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		file := h.mustCreateFile(t, u, "/", "f.txt", "x")

		_, err := h.drive.Share(ctx, u, file.ID, u, metadata.ShareGrant{Read: true})
		require.Error(t, err)
		assert.True(t, metadata.IsValidation(err))
	})

	t.Run("RequiresShareCapability", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		v := h.provision(t, "grantee", 1000)
		w := h.provision(t, "third", 1000)
		file := h.mustCreateFile(t, u, "/", "f.txt", "x")

		// Full data grants never include the ability to re-share.
		_, err := h.drive.Share(ctx, u, file.ID, v, metadata.ShareGrant{Read: true, Write: true, Delete: true})
		require.NoError(t, err)

		_, err = h.drive.Share(ctx, v, file.ID, w, metadata.ShareGrant{Read: true})
		require.Error(t, err)
		assert.True(t, metadata.IsPermissionDenied(err))
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	u := h.provision(t, "owner", 1000)
	v := h.provision(t, "reader", 1000)
	file := h.mustCreateFile(t, u, "/", "f.txt", "secret")

	_, err := h.drive.Share(ctx, u, file.ID, v, metadata.ShareGrant{Read: true})
	require.NoError(t, err)
	assert.Equal(t, "secret", h.readAll(t, v, file.ID))

	revoked, err := h.drive.Revoke(ctx, u, file.ID, v)
	require.NoError(t, err)
	assert.Empty(t, revoked.Shares)

	_, _, err = h.drive.Download(ctx, v, file.ID)
	require.Error(t, err)
	assert.True(t, metadata.IsPermissionDenied(err))

	// Revoking an absent grant is harmless.
	_, err = h.drive.Revoke(ctx, u, file.ID, v)
	require.NoError(t, err)
}

func TestSetPermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("OthersPolicyOpensPublicReads", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		v := h.provision(t, "stranger", 1000)
		file := h.mustCreateFile(t, u, "/", "public.txt", "open")

		_, _, err := h.drive.Download(ctx, v, file.ID)
		require.Error(t, err)

		_, err = h.drive.SetPermissions(ctx, u, file.ID,
			metadata.Capabilities{Read: true, Write: true, Delete: true, Share: true},
			metadata.Capabilities{Read: true})
		require.NoError(t, err)

		assert.Equal(t, "open", h.readAll(t, v, file.ID))
	})

	t.Run("OthersShareAlwaysForcedOff", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		file := h.mustCreateFile(t, u, "/", "f.txt", "x")

		updated, err := h.drive.SetPermissions(ctx, u, file.ID,
			metadata.Capabilities{Read: true, Write: true, Delete: true, Share: true},
			metadata.Capabilities{Read: true, Share: true})
		require.NoError(t, err)
		assert.False(t, updated.OthersPermissions.Share)
	})

	t.Run("OwnerCanLockThemselvesOut", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "owner", 1000)
		file := h.mustCreateFile(t, u, "/", "f.txt", "x")

		_, err := h.drive.SetPermissions(ctx, u, file.ID,
			metadata.Capabilities{Read: true, Share: true},
			metadata.Capabilities{})
		require.NoError(t, err)

		_, err = h.drive.Rename(ctx, u, file.ID, "nope.txt")
		require.Error(t, err)
		assert.True(t, metadata.IsPermissionDenied(err))
	})
}

func TestListSharedWith(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t)
	u := h.provision(t, "owner", 1000)
	v := h.provision(t, "reader", 1000)

	a := h.mustCreateFile(t, u, "/", "a.txt", "x")
	h.mustCreateFile(t, u, "/", "b.txt", "x")

	_, err := h.drive.Share(ctx, u, a.ID, v, metadata.ShareGrant{Read: true})
	require.NoError(t, err)

	shared, err := h.drive.ListSharedWith(ctx, v)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, a.ID, shared[0].ID)

	none, err := h.drive.ListSharedWith(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, none)
}
