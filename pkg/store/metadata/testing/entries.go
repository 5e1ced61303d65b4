package testing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// RunEntryTests executes all single-entry operation tests in the suite.
func (suite *StoreTestSuite) RunEntryTests(t *testing.T) {
	t.Run("Create", suite.testCreate)
	t.Run("Get", suite.testGet)
	t.Run("Update", suite.testUpdate)
	t.Run("Delete", suite.testDelete)
	t.Run("Uniqueness", suite.testUniqueness)
}

func (suite *StoreTestSuite) testCreate(test *testing.T) {
	test.Run("CreateAndFetch", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "notes.txt", 12)
		require.NoError(t, store.CreateEntry(ctx, entry))

		got, err := store.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, "notes.txt", got.Name)
		assert.Equal(t, metadata.KindFile, got.Kind)
		assert.Equal(t, uint64(12), got.SizeBytes)
	})

	test.Run("CreateRejectsEmptyID", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()

		entry := fileEntry("alice", "/", "notes.txt", 12)
		entry.ID = ""
		err := store.CreateEntry(testContext(), entry)
		require.Error(t, err)
		assert.True(t, metadata.IsValidation(err))
	})

	test.Run("CreateDuplicateName", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "notes.txt", 1)))

		err := store.CreateEntry(ctx, fileEntry("alice", "/", "notes.txt", 2))
		require.Error(t, err)
		assert.True(t, metadata.IsConflict(err))
	})

	test.Run("SameNameDifferentOwner", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "notes.txt", 1)))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("bob", "/", "notes.txt", 1)))
	})

	test.Run("SameNameDifferentParent", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/a", "notes.txt", 1)))
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/b", "notes.txt", 1)))
	})

	test.Run("DeletedEntrySkipsUniqueness", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		deleted := fileEntry("alice", "/", "notes.txt", 1)
		deleted.IsDeleted = true
		deletedAt := time.Now().UTC()
		deleted.DeletedAt = &deletedAt
		require.NoError(t, store.CreateEntry(ctx, deleted))

		// The slot is free: a live entry can claim the same name.
		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "notes.txt", 1)))
	})
}

func (suite *StoreTestSuite) testGet(test *testing.T) {
	test.Run("GetNotFound", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()

		_, err := store.GetEntry(testContext(), metadata.NewEntryID())
		require.Error(t, err)
		assert.True(t, metadata.IsNotFound(err))
	})

	test.Run("GetReturnsDeletedEntries", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "trashed.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		_, err := store.UpdateEntry(ctx, entry.ID, func(e *metadata.Entry) error {
			e.IsDeleted = true
			return nil
		})
		require.NoError(t, err)

		got, err := store.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted)
	})

	test.Run("GetReturnsPrivateCopy", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "copy.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		got, err := store.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := store.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "copy.txt", again.Name)
	})
}

func (suite *StoreTestSuite) testUpdate(test *testing.T) {
	test.Run("UpdateApplied", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "grow.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		updated, err := store.UpdateEntry(ctx, entry.ID, func(e *metadata.Entry) error {
			e.SizeBytes = 42
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(42), updated.SizeBytes)

		got, err := store.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), got.SizeBytes)
	})

	test.Run("UpdateNotFound", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()

		_, err := store.UpdateEntry(testContext(), metadata.NewEntryID(), func(e *metadata.Entry) error {
			return nil
		})
		require.Error(t, err)
		assert.True(t, metadata.IsNotFound(err))
	})

	test.Run("MutatorErrorLeavesEntryUnchanged", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "keep.txt", 7)
		require.NoError(t, store.CreateEntry(ctx, entry))

		wantErr := metadata.NewValidation("rejected", "")
		_, err := store.UpdateEntry(ctx, entry.ID, func(e *metadata.Entry) error {
			e.SizeBytes = 999
			return wantErr
		})
		require.ErrorIs(t, err, error(wantErr))

		got, err := store.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), got.SizeBytes)
	})

	test.Run("RenameToTakenNameConflicts", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "a.txt", 1)))
		second := fileEntry("alice", "/", "b.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, second))

		_, err := store.UpdateEntry(ctx, second.ID, func(e *metadata.Entry) error {
			e.Name = "a.txt"
			return nil
		})
		require.Error(t, err)
		assert.True(t, metadata.IsConflict(err))
	})

	test.Run("RenameToOwnNameIsFine", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "self.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		_, err := store.UpdateEntry(ctx, entry.ID, func(e *metadata.Entry) error {
			e.SizeBytes = 2
			return nil
		})
		require.NoError(t, err)
	})

	test.Run("RenameFreesOldSlot", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "old.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		_, err := store.UpdateEntry(ctx, entry.ID, func(e *metadata.Entry) error {
			e.Name = "new.txt"
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "old.txt", 1)))
	})

	test.Run("SoftDeleteFreesSlot", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "bin.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		_, err := store.UpdateEntry(ctx, entry.ID, func(e *metadata.Entry) error {
			e.IsDeleted = true
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "bin.txt", 1)))
	})

	test.Run("RestoreIntoTakenSlotConflicts", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		trashed := fileEntry("alice", "/", "seat.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, trashed))
		_, err := store.UpdateEntry(ctx, trashed.ID, func(e *metadata.Entry) error {
			e.IsDeleted = true
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "seat.txt", 1)))

		_, err = store.UpdateEntry(ctx, trashed.ID, func(e *metadata.Entry) error {
			e.IsDeleted = false
			return nil
		})
		require.Error(t, err)
		assert.True(t, metadata.IsConflict(err))
	})
}

func (suite *StoreTestSuite) testDelete(test *testing.T) {
	test.Run("DeleteRemovesRecord", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "gone.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))

		require.NoError(t, store.DeleteEntry(ctx, entry.ID))

		_, err := store.GetEntry(ctx, entry.ID)
		require.Error(t, err)
		assert.True(t, metadata.IsNotFound(err))
	})

	test.Run("DeleteNotFound", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()

		err := store.DeleteEntry(testContext(), metadata.NewEntryID())
		require.Error(t, err)
		assert.True(t, metadata.IsNotFound(err))
	})

	test.Run("DeleteFreesSlot", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		entry := fileEntry("alice", "/", "slot.txt", 1)
		require.NoError(t, store.CreateEntry(ctx, entry))
		require.NoError(t, store.DeleteEntry(ctx, entry.ID))

		require.NoError(t, store.CreateEntry(ctx, fileEntry("alice", "/", "slot.txt", 1)))
	})
}

func (suite *StoreTestSuite) testUniqueness(test *testing.T) {
	test.Run("ConcurrentCreatesYieldOneWinner", func(t *testing.T) {
		store := suite.NewStore()
		defer store.Close()
		ctx := testContext()

		const attempts = 16
		results := make([]error, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = store.CreateEntry(ctx, fileEntry("alice", "/", "race.txt", 1))
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range results {
			if err == nil {
				successes++
				continue
			}
			assert.True(t, metadata.IsConflict(err), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, successes)
	})
}
