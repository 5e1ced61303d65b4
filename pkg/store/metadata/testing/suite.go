package testing

import (
	"context"
	"testing"
	"time"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// StoreTestSuite is a comprehensive test suite for metadata.Store
// implementations. It tests the interface contract, not implementation
// details, making it reusable across different backends (memory, badger).
//
// Usage:
//
//	func TestMyMetadataStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() metadata.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh metadata.Store
	// instance for each test. This ensures test isolation.
	NewStore func() metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("EntryOperations", suite.RunEntryTests)
	t.Run("QueryOperations", suite.RunQueryTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// fileEntry builds an active file entry for tests.
func fileEntry(owner metadata.UserID, parentPath, name string, size uint64) *metadata.Entry {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	content := metadata.InlineContent([]byte("test payload"))
	return &metadata.Entry{
		ID:                metadata.NewEntryID(),
		Name:              name,
		ParentPath:        parentPath,
		Kind:              metadata.KindFile,
		SizeBytes:         size,
		Content:           &content,
		Owner:             owner,
		OwnerPermissions:  metadata.AllCapabilities(),
		OthersPermissions: metadata.Capabilities{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// dirEntry builds an active directory entry for tests.
func dirEntry(owner metadata.UserID, parentPath, name string) *metadata.Entry {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return &metadata.Entry{
		ID:                metadata.NewEntryID(),
		Name:              name,
		ParentPath:        parentPath,
		Kind:              metadata.KindDirectory,
		Owner:             owner,
		OwnerPermissions:  metadata.AllCapabilities(),
		OthersPermissions: metadata.Capabilities{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
