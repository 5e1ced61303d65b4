// Package blob defines the blob store abstraction used for large file
// payloads.
//
// A blob store holds opaque byte payloads addressed by an opaque Handle.
// It knows nothing about files, directories, owners, or permissions: the
// metadata layer references blobs through ContentRef and coordinates
// creation and reclamation. Small payloads never reach a blob store at all;
// they are embedded inline in the Entry record by the drive layer.
package blob

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Handle is an opaque identifier for a stored blob.
//
// Handles are generated by the store (UUID v4 in all shipped backends) and
// must be treated as opaque by callers. A handle is only valid for reads
// after the write that produced it has committed: a reader racing an
// in-progress streamed write observes ErrBlobNotFound, never truncated data.
type Handle string

// NewHandle generates a fresh random blob handle.
func NewHandle() Handle {
	return Handle(uuid.New().String())
}

// Store is the interface implemented by every blob storage backend.
//
// Shipped backends:
//   - memory: map-backed, for tests and ephemeral deployments
//   - fs: local filesystem, one file per handle, temp-file + rename commit
//   - s3: Amazon S3 or compatible (MinIO, Localstack), multipart for large
//     payloads
//
// Commit Semantics:
// Put and Writer.Commit are the only operations that make a handle readable.
// Backends must guarantee that a handle either reads back the complete
// committed payload or fails with ErrBlobNotFound; partially written state
// is never observable.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Put stores a complete payload in one operation and returns the new
	// handle. The handle is valid for reads as soon as Put returns.
	Put(ctx context.Context, data []byte) (Handle, error)

	// NewWriter begins a streamed write. Data written to the returned
	// Writer is not readable under any handle until Commit succeeds.
	// Callers must call exactly one of Commit or Abort.
	NewWriter(ctx context.Context) (Writer, error)

	// Open returns a reader for the payload stored under handle.
	// The caller is responsible for closing the reader.
	//
	// Returns ErrBlobNotFound (possibly wrapped) if no committed payload
	// exists under handle.
	Open(ctx context.Context, handle Handle) (io.ReadCloser, error)

	// Size returns the payload size in bytes without reading the data.
	//
	// Returns ErrBlobNotFound if no committed payload exists under handle.
	Size(ctx context.Context, handle Handle) (uint64, error)

	// Delete removes the payload stored under handle.
	//
	// Delete is idempotent: deleting a handle that does not exist is a
	// no-op and returns nil. Callers rely on this, since a prior delete or
	// a never-committed write can leave a dangling handle behind.
	Delete(ctx context.Context, handle Handle) error

	// List returns every committed handle in the store. Used by the
	// garbage collector to compute the orphaned set.
	List(ctx context.Context) ([]Handle, error)

	// Healthcheck verifies the backend can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases backend resources. The store is unusable afterward.
	Close() error
}

// Writer is a streamed blob write in progress.
//
// The write is invisible until Commit returns; Commit returns the handle
// under which the payload is readable. Abort discards all written data and
// is safe to call after a failed Commit.
type Writer interface {
	io.Writer

	// Commit finalizes the write and publishes the payload.
	Commit(ctx context.Context) (Handle, error)

	// Abort discards the write. Calling Abort after a successful Commit is
	// a no-op.
	Abort(ctx context.Context) error
}
