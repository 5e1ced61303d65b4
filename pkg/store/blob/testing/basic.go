package testing

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// RunBasicTests executes Put/Open/Size/Delete/List tests in the suite.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("PutAndOpen", suite.testPutAndOpen)
	t.Run("Size", suite.testSize)
	t.Run("Delete", suite.testDelete)
	t.Run("List", suite.testList)
	t.Run("Healthcheck", suite.testHealthcheck)
	t.Run("Close", suite.testClose)
}

func (suite *StoreTestSuite) testPutAndOpen(test *testing.T) {
	test.Run("RoundTrip", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		payload := []byte("hello blob store")
		handle, err := store.Put(ctx, payload)
		require.NoError(t, err)
		require.NotEmpty(t, handle)

		rc, err := store.Open(ctx, handle)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	test.Run("EmptyPayload", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		handle, err := store.Put(ctx, nil)
		require.NoError(t, err)

		rc, err := store.Open(ctx, handle)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	test.Run("OpenNotFound", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		_, err := store.Open(ctx, blob.NewHandle())
		require.ErrorIs(t, err, blob.ErrBlobNotFound)
	})

	test.Run("DistinctHandles", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		h1, err := store.Put(ctx, []byte("one"))
		require.NoError(t, err)
		h2, err := store.Put(ctx, []byte("two"))
		require.NoError(t, err)

		assert.NotEqual(t, h1, h2)
	})

	test.Run("PutCopiesCallerBuffer", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		payload := []byte("original")
		handle, err := store.Put(ctx, payload)
		require.NoError(t, err)

		// Mutating the caller's buffer must not affect the stored payload.
		payload[0] = 'X'

		rc, err := store.Open(ctx, handle)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), got)
	})
}

func (suite *StoreTestSuite) testSize(test *testing.T) {
	test.Run("SizeMatchesPayload", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		handle, err := store.Put(ctx, []byte("12345"))
		require.NoError(t, err)

		size, err := store.Size(ctx, handle)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), size)
	})

	test.Run("SizeNotFound", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		_, err := store.Size(ctx, blob.NewHandle())
		require.ErrorIs(t, err, blob.ErrBlobNotFound)
	})
}

func (suite *StoreTestSuite) testDelete(test *testing.T) {
	test.Run("DeleteRemovesPayload", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		handle, err := store.Put(ctx, []byte("bye"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, handle))

		_, err = store.Open(ctx, handle)
		require.ErrorIs(t, err, blob.ErrBlobNotFound)
	})

	test.Run("DeleteMissingIsNoop", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		require.NoError(t, store.Delete(ctx, blob.NewHandle()))
	})

	test.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		handle, err := store.Put(ctx, []byte("twice"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, handle))
		require.NoError(t, store.Delete(ctx, handle))
	})
}

func (suite *StoreTestSuite) testList(test *testing.T) {
	test.Run("ListEmpty", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		handles, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, handles)
	})

	test.Run("ListReturnsCommittedHandles", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		h1, err := store.Put(ctx, []byte("one"))
		require.NoError(t, err)
		h2, err := store.Put(ctx, []byte("two"))
		require.NoError(t, err)

		handles, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []blob.Handle{h1, h2}, handles)
	})

	test.Run("ListExcludesUncommittedWrites", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		committed, err := store.Put(ctx, []byte("done"))
		require.NoError(t, err)

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)
		_, err = w.Write([]byte("in progress"))
		require.NoError(t, err)
		defer w.Abort(ctx)

		handles, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []blob.Handle{committed}, handles)
	})
}

func (suite *StoreTestSuite) testHealthcheck(test *testing.T) {
	test.Run("HealthyStore", func(t *testing.T) {
		store := suite.NewStore()
		require.NoError(t, store.Healthcheck(testContext()))
	})
}

func (suite *StoreTestSuite) testClose(test *testing.T) {
	test.Run("CloseSucceeds", func(t *testing.T) {
		store := suite.NewStore()
		require.NoError(t, store.Close())
	})
}
