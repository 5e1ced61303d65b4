package drive

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateInlineToBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("MovesOversizedInlineContent", func(t *testing.T) {
		// Files created while the threshold was generous, then tightened.
		h := newHarnessWithConfig(t, Config{InlineThreshold: 1024})
		u := h.provision(t, "alice", 10000)

		big := h.mustCreateFile(t, u, "/", "big.txt", strings.Repeat("a", 512))
		small := h.mustCreateFile(t, u, "/", "small.txt", "tiny")
		require.True(t, big.Content.IsInline())

		h.drive.inlineThreshold = 64

		stats, err := h.drive.MigrateInlineToBlob(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Scanned)
		assert.Equal(t, 1, stats.Migrated)
		assert.Equal(t, int64(512), stats.BytesMoved)

		migrated, err := h.drive.GetEntry(ctx, u, big.ID)
		require.NoError(t, err)
		require.NotNil(t, migrated.Content)
		assert.False(t, migrated.Content.IsInline())
		assert.Equal(t, strings.Repeat("a", 512), h.readAll(t, u, big.ID))

		kept, err := h.drive.GetEntry(ctx, u, small.ID)
		require.NoError(t, err)
		assert.True(t, kept.Content.IsInline())
	})

	t.Run("NothingToMigrate", func(t *testing.T) {
		h := newHarness(t)
		u := h.provision(t, "alice", 1000)
		h.mustCreateFile(t, u, "/", "f.txt", "small")

		stats, err := h.drive.MigrateInlineToBlob(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Migrated)
		assert.Equal(t, int64(0), stats.BytesMoved)
	})

	t.Run("IncludesSoftDeletedFiles", func(t *testing.T) {
		h := newHarnessWithConfig(t, Config{InlineThreshold: 1024})
		u := h.provision(t, "alice", 10000)

		file := h.mustCreateFile(t, u, "/", "trashed.txt", strings.Repeat("b", 256))
		_, err := h.drive.SoftDelete(ctx, u, file.ID)
		require.NoError(t, err)

		h.drive.inlineThreshold = 64

		stats, err := h.drive.MigrateInlineToBlob(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Migrated)

		got, err := h.drive.GetEntry(ctx, u, file.ID)
		require.NoError(t, err)
		assert.False(t, got.Content.IsInline())
	})

	t.Run("DisabledInliningMigratesEverything", func(t *testing.T) {
		h := newHarnessWithConfig(t, Config{InlineThreshold: 1024})
		u := h.provision(t, "alice", 10000)
		h.mustCreateFile(t, u, "/", "a.txt", "aa")
		h.mustCreateFile(t, u, "/", "b.txt", "bbb")

		h.drive.inlineThreshold = -1

		stats, err := h.drive.MigrateInlineToBlob(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Migrated)
		assert.Equal(t, int64(5), stats.BytesMoved)

		handles, err := h.drive.blobs.List(ctx)
		require.NoError(t, err)
		assert.Len(t, handles, 2)
	})
}
