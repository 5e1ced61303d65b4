// Package metadata defines the flat record store that holds Entry records.
//
// The store knows nothing about hierarchy semantics: it persists entries,
// enforces the sibling-uniqueness constraint, and answers queries. The
// namespace engine in pkg/drive emulates the path hierarchy on top of it.
package metadata

import (
	"context"
	"errors"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// ErrStopQuery stops a Query scan early without reporting an error.
//
// Return it from a visit callback once enough entries have been seen.
var ErrStopQuery = errors.New("stop query")

// Query selects entries for a scan.
//
// Zero-value fields do not constrain the scan. Backends may use secondary
// indexes to serve constrained queries without a full scan; the listing
// query (Owner + ParentPath, deleted excluded) is the hot path and every
// shipped backend serves it from an index.
type Query struct {
	// Owner restricts the scan to entries owned by this user.
	Owner UserID

	// ParentPath restricts the scan to direct children of this
	// normalized directory path.
	ParentPath string

	// SharedWith restricts the scan to entries carrying a share grant
	// for this user.
	SharedWith UserID

	// IncludeDeleted includes soft-deleted entries in the scan.
	// Deleted entries are excluded by default.
	IncludeDeleted bool
}

// Matches reports whether the entry satisfies every constraint of q.
// Backends that scan more broadly than the query (or implement no index at
// all) filter with this.
func (q Query) Matches(e *Entry) bool {
	if e.IsDeleted && !q.IncludeDeleted {
		return false
	}
	if q.Owner != "" && e.Owner != q.Owner {
		return false
	}
	if q.ParentPath != "" && e.ParentPath != q.ParentPath {
		return false
	}
	if q.SharedWith != "" {
		if _, ok := e.Shares[q.SharedWith]; !ok {
			return false
		}
	}
	return true
}

// Store is the interface implemented by every metadata storage backend.
//
// Shipped backends:
//   - memory: map-backed with a sibling index, for tests and ephemeral use
//   - badger: embedded BadgerDB, persistent
//
// Atomicity:
// Single-entry operations (CreateEntry, UpdateEntry, DeleteEntry) are
// atomic: no partial write is ever visible to a concurrent reader, and the
// sibling-uniqueness constraint is enforced inside the same atomic step, so
// two concurrent creates of the same (owner, parentPath, name) yield
// exactly one success and one conflict. There are NO transactions across
// entries: bulk operations in the drive layer are sequences of independent
// single-entry operations and tolerate partial completion.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// CreateEntry persists a new entry.
	//
	// Returns a conflict StoreError if a non-deleted entry with the same
	// (owner, parentPath, name) already exists.
	CreateEntry(ctx context.Context, entry *Entry) error

	// GetEntry returns the entry with the given ID, deleted or not.
	//
	// Returns a not-found StoreError if no such entry exists.
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)

	// UpdateEntry applies mutate to the stored entry atomically and
	// returns the updated entry. The mutation and its uniqueness check
	// happen in one atomic step; if mutate returns an error the entry is
	// left unchanged and the error is returned as-is.
	//
	// Returns a not-found StoreError if no such entry exists, and a
	// conflict StoreError if the mutation would violate sibling
	// uniqueness (rename, move, restore).
	UpdateEntry(ctx context.Context, id EntryID, mutate func(*Entry) error) (*Entry, error)

	// DeleteEntry removes the record permanently. Used only by the
	// permanent-delete path; soft deletion is an UpdateEntry.
	//
	// Returns a not-found StoreError if no such entry exists.
	DeleteEntry(ctx context.Context, id EntryID) error

	// Query scans entries matching q and calls visit for each, in
	// unspecified order. The scan is finite and can be restarted by
	// calling Query again. Returning ErrStopQuery from visit ends the
	// scan without error; any other error aborts the scan and is
	// returned to the caller.
	//
	// Visited entries are private copies; mutating them has no effect
	// on stored state.
	Query(ctx context.Context, q Query, visit func(*Entry) error) error

	// AllBlobHandles returns the blob handles referenced by any entry,
	// deleted or not. Used by the garbage collector to compute the
	// orphaned set.
	AllBlobHandles(ctx context.Context) ([]blob.Handle, error)

	// Healthcheck verifies the backend can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources. The store is unusable afterward.
	Close() error
}
