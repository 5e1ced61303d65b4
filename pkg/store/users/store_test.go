package users

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()

	store, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "users.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestUser(t *testing.T, store *GORMStore, username string, quota int64) *User {
	t.Helper()

	user := &User{Username: username, QuotaBytes: quota}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestCreateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateAndFetch", func(t *testing.T) {
		user := createTestUser(t, store, "alice", 100)
		assert.NotEmpty(t, user.ID)

		got, err := store.GetUser(ctx, user.UserID())
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, int64(100), got.QuotaBytes)
		assert.Equal(t, int64(0), got.UsedBytes)

		byName, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		err := store.CreateUser(ctx, &User{Username: "alice", QuotaBytes: 100})
		require.Error(t, err)
		assert.True(t, metadata.IsConflict(err))
	})

	t.Run("EmptyUsername", func(t *testing.T) {
		err := store.CreateUser(ctx, &User{QuotaBytes: 100})
		require.Error(t, err)
		assert.True(t, metadata.IsValidation(err))
	})

	t.Run("GetUnknownUser", func(t *testing.T) {
		_, err := store.GetUser(ctx, "nope")
		require.Error(t, err)
		assert.True(t, metadata.IsNotFound(err))
	})
}

func TestSetHomeEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "homer", 100)
	entryID := metadata.NewEntryID()

	require.NoError(t, store.SetHomeEntry(ctx, user.UserID(), entryID))

	got, err := store.GetUser(ctx, user.UserID())
	require.NoError(t, err)
	assert.Equal(t, string(entryID), got.HomeEntryID)

	err = store.SetHomeEntry(ctx, "missing", entryID)
	require.Error(t, err)
	assert.True(t, metadata.IsNotFound(err))
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("WithinQuota", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		require.NoError(t, store.Reserve(ctx, user.UserID(), 60))
		require.NoError(t, store.Reserve(ctx, user.UserID(), 40))

		got, err := store.GetUser(ctx, user.UserID())
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.UsedBytes)
	})

	t.Run("ExceedsQuota", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		require.NoError(t, store.Reserve(ctx, user.UserID(), 90))

		err := store.Reserve(ctx, user.UserID(), 11)
		require.Error(t, err)
		assert.True(t, metadata.IsQuotaExceeded(err))

		// Failed reservations leave the counter untouched.
		got, err := store.GetUser(ctx, user.UserID())
		require.NoError(t, err)
		assert.Equal(t, int64(90), got.UsedBytes)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		store := newTestStore(t)

		err := store.Reserve(ctx, "missing", 10)
		require.Error(t, err)
		assert.True(t, metadata.IsNotFound(err))
	})

	t.Run("NonPositiveDelta", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		err := store.Reserve(ctx, user.UserID(), 0)
		require.Error(t, err)
		assert.True(t, metadata.IsValidation(err))

		err = store.Reserve(ctx, user.UserID(), -5)
		require.Error(t, err)
		assert.True(t, metadata.IsValidation(err))
	})

	t.Run("ConcurrentReservationsRespectQuota", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		const workers = 10
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Reserve(ctx, user.UserID(), 30)
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
			} else {
				assert.True(t, metadata.IsQuotaExceeded(err), "unexpected error: %v", err)
			}
		}
		assert.Equal(t, 3, successes)

		got, err := store.GetUser(ctx, user.UserID())
		require.NoError(t, err)
		assert.Equal(t, int64(90), got.UsedBytes)
	})
}

func TestCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("SignedDeltas", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		require.NoError(t, store.Commit(ctx, user.UserID(), 50))
		require.NoError(t, store.Commit(ctx, user.UserID(), -20))

		got, err := store.GetUser(ctx, user.UserID())
		require.NoError(t, err)
		assert.Equal(t, int64(30), got.UsedBytes)
	})

	t.Run("ClampsAtZero", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		require.NoError(t, store.Commit(ctx, user.UserID(), 10))
		require.NoError(t, store.Commit(ctx, user.UserID(), -50))

		got, err := store.GetUser(ctx, user.UserID())
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.UsedBytes)
	})

	t.Run("ZeroDeltaIsNoop", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)

		require.NoError(t, store.Commit(ctx, user.UserID(), 0))
	})
}

func TestSetUsedBytes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "alice", 100)
	require.NoError(t, store.Commit(ctx, user.UserID(), 42))

	require.NoError(t, store.SetUsedBytes(ctx, user.UserID(), 7))

	got, err := store.GetUser(ctx, user.UserID())
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UsedBytes)

	err = store.SetUsedBytes(ctx, user.UserID(), -1)
	require.Error(t, err)
	assert.True(t, metadata.IsValidation(err))
}
