package testing

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// RunWriterTests executes streamed write tests in the suite.
func (suite *StoreTestSuite) RunWriterTests(t *testing.T) {
	t.Run("Commit", suite.testWriterCommit)
	t.Run("Abort", suite.testWriterAbort)
	t.Run("ClosedWriter", suite.testClosedWriter)
}

func (suite *StoreTestSuite) testWriterCommit(test *testing.T) {
	test.Run("CommitPublishesPayload", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		_, err = w.Write([]byte("streamed "))
		require.NoError(t, err)
		_, err = w.Write([]byte("payload"))
		require.NoError(t, err)

		handle, err := w.Commit(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, handle)

		rc, err := store.Open(ctx, handle)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("streamed payload"), got)
	})

	test.Run("CommitEmptyWrite", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		handle, err := w.Commit(ctx)
		require.NoError(t, err)

		size, err := store.Size(ctx, handle)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), size)
	})

	test.Run("CommitLargePayload", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		// Large enough to exercise chunked writes in every backend.
		payload := bytes.Repeat([]byte("abcdefgh"), 128*1024)

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		chunk := 64 * 1024
		for off := 0; off < len(payload); off += chunk {
			end := off + chunk
			if end > len(payload) {
				end = len(payload)
			}
			_, err = w.Write(payload[off:end])
			require.NoError(t, err)
		}

		handle, err := w.Commit(ctx)
		require.NoError(t, err)

		size, err := store.Size(ctx, handle)
		require.NoError(t, err)
		assert.Equal(t, uint64(len(payload)), size)

		rc, err := store.Open(ctx, handle)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})
}

func (suite *StoreTestSuite) testWriterAbort(test *testing.T) {
	test.Run("AbortDiscardsData", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		_, err = w.Write([]byte("never seen"))
		require.NoError(t, err)

		require.NoError(t, w.Abort(ctx))

		handles, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, handles)
	})

	test.Run("AbortIsIdempotent", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		require.NoError(t, w.Abort(ctx))
		require.NoError(t, w.Abort(ctx))
	})

	test.Run("AbortAfterCommitIsNoop", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		_, err = w.Write([]byte("kept"))
		require.NoError(t, err)

		handle, err := w.Commit(ctx)
		require.NoError(t, err)

		require.NoError(t, w.Abort(ctx))

		// The committed payload survives the late Abort.
		_, err = store.Size(ctx, handle)
		require.NoError(t, err)
	})
}

func (suite *StoreTestSuite) testClosedWriter(test *testing.T) {
	test.Run("WriteAfterCommit", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		_, err = w.Commit(ctx)
		require.NoError(t, err)

		_, err = w.Write([]byte("late"))
		require.ErrorIs(t, err, blob.ErrWriterClosed)
	})

	test.Run("CommitAfterAbort", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		require.NoError(t, w.Abort(ctx))

		_, err = w.Commit(ctx)
		require.ErrorIs(t, err, blob.ErrWriterClosed)
	})

	test.Run("DoubleCommit", func(t *testing.T) {
		store := suite.NewStore()
		ctx := testContext()

		w, err := store.NewWriter(ctx)
		require.NoError(t, err)

		_, err = w.Commit(ctx)
		require.NoError(t, err)

		_, err = w.Commit(ctx)
		require.ErrorIs(t, err, blob.ErrWriterClosed)
	})
}
