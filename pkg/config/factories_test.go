package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/users"
)

func TestCreateMetadataStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		store, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "memory"})
		require.NoError(t, err)
		require.NotNil(t, store)
		defer func() { _ = store.Close() }()

		assert.NoError(t, store.Healthcheck(ctx))
	})

	t.Run("Badger", func(t *testing.T) {
		store, err := CreateMetadataStore(ctx, &MetadataConfig{
			Type: "badger",
			Badger: map[string]any{
				"db_path": t.TempDir(),
			},
		})
		require.NoError(t, err)
		require.NotNil(t, store)
		defer func() { _ = store.Close() }()

		assert.NoError(t, store.Healthcheck(ctx))
	})

	t.Run("BadgerWithoutPath", func(t *testing.T) {
		_, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "badger"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_path is required")
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "etcd"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown metadata store type")
	})
}

func TestCreateBlobStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		store, err := CreateBlobStore(ctx, &BlobConfig{Type: "memory"})
		require.NoError(t, err)
		require.NotNil(t, store)

		assert.NoError(t, store.Healthcheck(ctx))
	})

	t.Run("Filesystem", func(t *testing.T) {
		store, err := CreateBlobStore(ctx, &BlobConfig{
			Type: "filesystem",
			Filesystem: map[string]any{
				"path": t.TempDir(),
			},
		})
		require.NoError(t, err)
		require.NotNil(t, store)

		assert.NoError(t, store.Healthcheck(ctx))
	})

	t.Run("FilesystemWithoutPath", func(t *testing.T) {
		_, err := CreateBlobStore(ctx, &BlobConfig{Type: "filesystem"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})

	t.Run("S3WithoutBucket", func(t *testing.T) {
		_, err := CreateBlobStore(ctx, &BlobConfig{
			Type: "s3",
			S3:   map[string]any{"region": "us-east-1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CreateBlobStore(ctx, &BlobConfig{Type: "tape"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown blob store type")
	})
}

func TestCreateUserStore(t *testing.T) {
	ctx := context.Background()

	cfg := &users.Config{
		Type: users.DatabaseTypeSQLite,
		SQLite: users.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "users.db"),
		},
	}

	store, err := CreateUserStore(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() { _ = store.Close() }()

	assert.NoError(t, store.Healthcheck(ctx))
}
