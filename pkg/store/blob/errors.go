package blob

import "errors"

// ============================================================================
// Standard Blob Store Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all blob store implementations. Callers should check for them with
// errors.Is and map them to the drive-level error taxonomy.
//
// Implementations should wrap these errors with additional context:
//
//	if !exists {
//	    return fmt.Errorf("blob %s: %w", handle, blob.ErrBlobNotFound)
//	}

var (
	// ErrBlobNotFound indicates no committed payload exists under the
	// given handle. This is also what a reader sees while a streamed
	// write to the same store is still in progress.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrWriterClosed indicates a Write, Commit, or Abort on a Writer
	// that has already been committed or aborted.
	ErrWriterClosed = errors.New("blob writer already closed")

	// ErrStorageBackend indicates an I/O failure in the underlying
	// backend (disk error, S3 request failure). The operation may succeed
	// on retry.
	ErrStorageBackend = errors.New("blob storage backend error")
)
