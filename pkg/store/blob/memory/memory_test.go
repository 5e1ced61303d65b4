package memory

import (
	"context"
	"testing"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
	blobtesting "github.com/nimbusfs/nimbus/pkg/store/blob/testing"
)

// TestMemoryBlobStore runs the complete blob.Store test suite against the
// MemoryBlobStore implementation.
func TestMemoryBlobStore(t *testing.T) {
	suite := &blobtesting.StoreTestSuite{
		NewStore: func() blob.Store {
			store, err := NewMemoryBlobStore(context.Background())
			if err != nil {
				t.Fatalf("Failed to create MemoryBlobStore: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}

func TestMemoryBlobStoreClose(t *testing.T) {
	ctx := context.Background()

	store, err := NewMemoryBlobStore(ctx)
	if err != nil {
		t.Fatalf("Failed to create MemoryBlobStore: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Healthcheck(ctx); err == nil {
		t.Fatal("Healthcheck should fail after Close")
	}
}
