package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	metadatatesting "github.com/nimbusfs/nimbus/pkg/store/metadata/testing"
)

// TestBadgerMetadataStore runs the complete metadata.Store test suite
// against the BadgerMetadataStore implementation.
func TestBadgerMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.Store {
			store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{
				DBPath: t.TempDir(),
			})
			if err != nil {
				t.Fatalf("Failed to create BadgerMetadataStore: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}

func TestBadgerMetadataStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)

	entry := &metadata.Entry{
		ID:               metadata.NewEntryID(),
		Name:             "persist.txt",
		ParentPath:       "/",
		Kind:             metadata.KindFile,
		SizeBytes:        9,
		Owner:            "alice",
		OwnerPermissions: metadata.AllCapabilities(),
	}
	require.NoError(t, store.CreateEntry(ctx, entry))
	require.NoError(t, store.Close())

	// Reopen over the same directory: record and sibling index survive.
	reopened, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "persist.txt", got.Name)

	err = reopened.CreateEntry(ctx, &metadata.Entry{
		ID:         metadata.NewEntryID(),
		Name:       "persist.txt",
		ParentPath: "/",
		Kind:       metadata.KindFile,
		Owner:      "alice",
	})
	require.Error(t, err)
	require.True(t, metadata.IsConflict(err))
}
