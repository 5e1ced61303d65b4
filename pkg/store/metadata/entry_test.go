package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRefConstructors(t *testing.T) {
	inline := InlineContent([]byte("hello"))
	assert.Equal(t, ContentInline, inline.Kind)
	assert.True(t, inline.IsInline())
	assert.Empty(t, inline.BlobHandle)

	blobbed := BlobContent("handle-1")
	assert.Equal(t, ContentBlob, blobbed.Kind)
	assert.False(t, blobbed.IsInline())
	assert.Empty(t, blobbed.Inline)
}

func TestCapabilitiesHas(t *testing.T) {
	caps := Capabilities{Read: true, Delete: true}
	assert.True(t, caps.Has(CapabilityRead))
	assert.False(t, caps.Has(CapabilityWrite))
	assert.True(t, caps.Has(CapabilityDelete))
	assert.False(t, caps.Has(CapabilityShare))

	all := AllCapabilities()
	for _, c := range []Capability{CapabilityRead, CapabilityWrite, CapabilityDelete, CapabilityShare} {
		assert.True(t, all.Has(c))
	}
}

func TestShareGrantHas(t *testing.T) {
	grant := ShareGrant{Read: true, Write: true}
	assert.True(t, grant.Has(CapabilityRead))
	assert.True(t, grant.Has(CapabilityWrite))
	assert.False(t, grant.Has(CapabilityDelete))

	// The share capability is never grantable.
	assert.False(t, grant.Has(CapabilityShare))
}

func TestEntryPath(t *testing.T) {
	root := &Entry{Name: "Docs", ParentPath: "/"}
	assert.Equal(t, "/Docs", root.Path())

	nested := &Entry{Name: "readme.txt", ParentPath: "/Docs/sub"}
	assert.Equal(t, "/Docs/sub/readme.txt", nested.Path())
}

func TestEntryClone(t *testing.T) {
	deletedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	content := InlineContent([]byte("payload"))
	entry := &Entry{
		ID:         NewEntryID(),
		Name:       "clone.txt",
		ParentPath: "/Docs",
		Kind:       KindFile,
		SizeBytes:  7,
		Content:    &content,
		Owner:      "alice",
		Shares: map[UserID]ShareGrant{
			"bob": {Read: true},
		},
		Tags:      []string{"work"},
		Metadata:  map[string]string{"note": "original"},
		IsDeleted: true,
		DeletedAt: &deletedAt,
	}

	clone := entry.Clone()
	require.Equal(t, entry, clone)

	// Mutating the clone must not leak into the original.
	clone.Content.Inline[0] = 'X'
	clone.Shares["carol"] = ShareGrant{Read: true}
	clone.Tags[0] = "changed"
	clone.Metadata["note"] = "changed"
	*clone.DeletedAt = clone.DeletedAt.Add(time.Hour)

	assert.Equal(t, []byte("payload"), entry.Content.Inline)
	assert.NotContains(t, entry.Shares, UserID("carol"))
	assert.Equal(t, "work", entry.Tags[0])
	assert.Equal(t, "original", entry.Metadata["note"])
	assert.Equal(t, deletedAt, *entry.DeletedAt)
}

func TestStoreErrorHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("/x")))
	assert.True(t, IsConflict(NewConflict("/x")))
	assert.True(t, IsPermissionDenied(NewPermissionDenied("/x")))
	assert.True(t, IsValidation(NewValidation("bad", "/x")))
	assert.False(t, IsNotFound(NewConflict("/x")))
	assert.False(t, IsConflict(nil))

	withPath := NewConflict("/Docs/a.txt")
	assert.Equal(t, "name already in use: /Docs/a.txt", withPath.Error())

	noPath := NewValidation("name must not be empty", "")
	assert.Equal(t, "name must not be empty", noPath.Error())
}
