package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// RunQueryTests executes all scan tests in the suite.
func (suite *StoreTestSuite) RunQueryTests(t *testing.T) {
	t.Run("Query", suite.testQuery)
	t.Run("BlobHandles", suite.testBlobHandles)
}

// collect runs a query and gathers the visited entry names.
func collect(t *testing.T, store metadata.Store, q metadata.Query) []string {
	t.Helper()

	var names []string
	err := store.Query(testContext(), q, func(e *metadata.Entry) error {
		names = append(names, e.Name)
		return nil
	})
	require.NoError(t, err)
	return names
}

func (suite *StoreTestSuite) testQuery(test *testing.T) {
	test.Run("ListChildren", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, dirEntry("alice", "/", "Docs")))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Docs", "a.txt", 1)))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Docs", "b.txt", 1)))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Other", "c.txt", 1)))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("bob", "/Docs", "d.txt", 1)))

		names := collect(t, store, metadata.Query{Owner: "alice", ParentPath: "/Docs"})
		assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
	})

	test.Run("DeletedExcludedByDefault", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		live := fileEntry("alice", "/Docs", "live.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, live))

		trashed := fileEntry("alice", "/Docs", "trash.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, trashed))
		_, err := store.UpdateEntry(ctx, trashed.ID, func(e *metadata.Entry) error {
			e.IsDeleted = true
			return nil
		})
		require.NoError(t, err)

		names := collect(t, store, metadata.Query{Owner: "alice", ParentPath: "/Docs"})
		assert.Equal(t, []string{"live.txt"}, names)

		names = collect(t, store, metadata.Query{Owner: "alice", ParentPath: "/Docs", IncludeDeleted: true})
		assert.ElementsMatch(t, []string{"live.txt", "trash.txt"}, names)
	})

	test.Run("SharedWith", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		shared := fileEntry("alice", "/Docs", "shared.txt", 1)
		shared.Shares = map[metadata.UserID]metadata.ShareGrant{
			"bob": {Read: true, GrantedAt: time.Now().UTC()},
		}
		require.NoError(t, store.CreateEntry(ctx, shared))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Docs", "private.txt", 1)))

		names := collect(t, store, metadata.Query{SharedWith: "bob"})
		assert.Equal(t, []string{"shared.txt"}, names)

		names = collect(t, store, metadata.Query{SharedWith: "carol"})
		assert.Empty(t, names)
	})

	test.Run("StopQueryEndsScanCleanly", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Docs", "a.txt", 1)))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Docs", "b.txt", 1)))

		visited := 0
		err := store.Query(ctx, metadata.Query{Owner: "alice"}, func(e *metadata.Entry) error {
			visited++
			return metadata.ErrStopQuery
		})
		require.NoError(t, err)
		assert.Equal(t, 1, visited)
	})

	test.Run("VisitErrorAborts", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/Docs", "a.txt", 1)))

		wantErr := metadata.NewValidation("boom", "")
		err := store.Query(ctx, metadata.Query{}, func(e *metadata.Entry) error {
			return wantErr
		})
		require.ErrorIs(t, err, error(wantErr))
	})
}

func (suite *StoreTestSuite) testBlobHandles(test *testing.T) {
	test.Run("CollectsBlobReferences", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		inline := fileEntry("alice", "/", "small.txt", 4)
		require.NoError(t, store.CreateEntry(ctx, inline))

		blobbed := fileEntry("alice", "/", "big.bin", 4096)
		content := metadata.BlobContent("blob-handle-1")
		blobbed.Content = &content
		require.NoError(t, store.CreateEntry(ctx, blobbed))

		trashedBlob := fileEntry("alice", "/", "trashed.bin", 4096)
		trashedContent := metadata.BlobContent("blob-handle-2")
		trashedBlob.Content = &trashedContent
		trashedBlob.IsDeleted = true
		require.NoError(t, store.CreateEntry(ctx, trashedBlob))

		handles, err := store.AllBlobHandles(ctx)
		require.NoError(t, err)

		got := make([]string, 0, len(handles))
		for _, h := range handles {
			got = append(got, string(h))
		}
		// Soft-deleted entries still hold their blobs.
		assert.ElementsMatch(t, []string{"blob-handle-1", "blob-handle-2"}, got)
	})
}
