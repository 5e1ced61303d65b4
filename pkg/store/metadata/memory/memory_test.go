package memory

import (
	"context"
	"testing"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	metadatatesting "github.com/nimbusfs/nimbus/pkg/store/metadata/testing"
)

// TestMemoryMetadataStore runs the complete metadata.Store test suite
// against the MemoryMetadataStore implementation.
func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.Store {
			store, err := NewMemoryMetadataStore(context.Background())
			if err != nil {
				t.Fatalf("Failed to create MemoryMetadataStore: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}
