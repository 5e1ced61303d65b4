package metadata

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// EntryID is the unique identifier of an Entry.
//
// Generated using UUID v4 (random) for collision resistance. IDs are
// immutable: an entry keeps its ID across renames and moves, so handles
// held by callers stay valid while the entry's path changes.
type EntryID string

// NewEntryID generates a fresh random entry identifier.
func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

// UserID identifies a user. The value is opaque to the metadata layer;
// authentication happens outside this system and supplies it ready-made.
type UserID string

// EntryKind distinguishes files from directories.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// Capability is a single access right on an entry.
type Capability string

const (
	CapabilityRead   Capability = "read"
	CapabilityWrite  Capability = "write"
	CapabilityDelete Capability = "delete"
	CapabilityShare  Capability = "share"
)

// Capabilities is the set of rights attached to an owner or to the
// "everyone else" policy of an entry. Each flag toggles independently.
type Capabilities struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
	Share  bool `json:"share"`
}

// AllCapabilities is the owner default: every right granted.
func AllCapabilities() Capabilities {
	return Capabilities{Read: true, Write: true, Delete: true, Share: true}
}

// Has reports whether the set includes the given capability.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapabilityRead:
		return c.Read
	case CapabilityWrite:
		return c.Write
	case CapabilityDelete:
		return c.Delete
	case CapabilityShare:
		return c.Share
	default:
		return false
	}
}

// ShareGrant is the capability subset a grantee holds on a shared entry.
//
// The share capability itself is never grantable: only the owner can manage
// sharing, so a grant carries read/write/delete flags only.
type ShareGrant struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`

	// GrantedAt records when this grant was created or last overwritten.
	GrantedAt time.Time `json:"granted_at"`
}

// Has reports whether the grant includes the given capability.
func (g ShareGrant) Has(capability Capability) bool {
	switch capability {
	case CapabilityRead:
		return g.Read
	case CapabilityWrite:
		return g.Write
	case CapabilityDelete:
		return g.Delete
	default:
		return false
	}
}

// ContentKind tags the two content representations of a file.
type ContentKind string

const (
	// ContentInline embeds the payload directly in the entry record.
	ContentInline ContentKind = "inline"

	// ContentBlob references a payload stored in the blob store.
	ContentBlob ContentKind = "blob"
)

// ContentRef is a tagged reference to a file's payload.
//
// Exactly one representation is populated, selected by Kind: Inline holds
// the payload bytes directly (JSON-encoded as base64), Blob holds the
// handle of a payload in the blob store. Use the constructors; never build
// a ContentRef with both fields set.
type ContentRef struct {
	Kind ContentKind `json:"kind"`

	// Inline is the embedded payload. Populated only when Kind is
	// ContentInline.
	Inline []byte `json:"inline,omitempty"`

	// BlobHandle references the blob store payload. Populated only when
	// Kind is ContentBlob.
	BlobHandle blob.Handle `json:"blob_handle,omitempty"`
}

// InlineContent builds a ContentRef embedding the payload in the record.
func InlineContent(data []byte) ContentRef {
	return ContentRef{Kind: ContentInline, Inline: data}
}

// BlobContent builds a ContentRef pointing at a stored blob.
func BlobContent(handle blob.Handle) ContentRef {
	return ContentRef{Kind: ContentBlob, BlobHandle: handle}
}

// IsInline reports whether the payload is embedded in the record.
func (r ContentRef) IsInline() bool {
	return r.Kind == ContentInline
}

// Entry represents a file or directory record.
//
// The hierarchy is emulated over a flat store: an entry references its
// containing directory through the ParentPath string, not a parent ID, so
// moving a directory rewrites the ParentPath of every descendant (the
// cascade in the namespace engine).
//
// Soft-deleted entries stay addressable by ID for restore and permanent
// deletion but are excluded from listings and from the sibling-uniqueness
// constraint.
type Entry struct {
	// ID is the immutable unique identifier, assigned at creation.
	ID EntryID `json:"id"`

	// Name is the leaf display name, unique among non-deleted siblings
	// sharing the same (Owner, ParentPath).
	Name string `json:"name"`

	// ParentPath is the normalized absolute path of the containing
	// directory. "/" is the root.
	ParentPath string `json:"parent_path"`

	// Kind distinguishes files from directories.
	Kind EntryKind `json:"kind"`

	// SizeBytes is the logical payload size. Always 0 for directories.
	SizeBytes uint64 `json:"size_bytes"`

	// Content references the file payload. Nil for directories.
	Content *ContentRef `json:"content,omitempty"`

	// Owner is the owning user. Immutable after creation.
	Owner UserID `json:"owner"`

	// OwnerPermissions restricts the owner's own access. Defaults to
	// all-true at creation; an explicit false revokes that right even
	// from the owner.
	OwnerPermissions Capabilities `json:"owner_permissions"`

	// OthersPermissions is the fallback policy for users who are neither
	// the owner nor a grantee. Default deny.
	OthersPermissions Capabilities `json:"others_permissions"`

	// Shares maps grantee user ID to that user's grant. At most one
	// grant per grantee; re-sharing overwrites.
	Shares map[UserID]ShareGrant `json:"shares,omitempty"`

	// Tags and Metadata are free-form and carry no invariants.
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Soft-delete state. A deleted entry is hidden from listings but
	// remains fetchable by ID.
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy UserID     `json:"deleted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Path returns the entry's full normalized path (ParentPath joined with
// Name).
func (e *Entry) Path() string {
	return JoinPath(e.ParentPath, e.Name)
}

// IsDirectory reports whether the entry is a directory.
func (e *Entry) IsDirectory() bool {
	return e.Kind == KindDirectory
}

// Clone returns a deep copy of the entry.
//
// Stores hand out and accept clones so callers can never mutate persisted
// state through a shared pointer.
func (e *Entry) Clone() *Entry {
	clone := *e

	if e.Content != nil {
		content := *e.Content
		content.Inline = append([]byte(nil), e.Content.Inline...)
		clone.Content = &content
	}

	if e.Shares != nil {
		clone.Shares = make(map[UserID]ShareGrant, len(e.Shares))
		for grantee, grant := range e.Shares {
			clone.Shares[grantee] = grant
		}
	}

	if e.Tags != nil {
		clone.Tags = append([]string(nil), e.Tags...)
	}

	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}

	if e.DeletedAt != nil {
		deletedAt := *e.DeletedAt
		clone.DeletedAt = &deletedAt
	}

	return &clone
}
