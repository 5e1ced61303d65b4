// Package fs implements filesystem-based blob storage.
//
// Payloads are stored as one file per handle under a base directory.
// Streamed writes land in a staging subdirectory and are published with an
// atomic rename on Commit, so a committed handle always reads back either
// the complete payload or blob.ErrBlobNotFound.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
)

// stagingDir is where in-progress streamed writes live until Commit.
const stagingDir = ".staging"

// FSBlobStore implements blob.Store using the local filesystem.
//
// Thread Safety:
// Filesystem operations are safe at the OS level. Handles are random UUIDs,
// so two writers never target the same final path; the staging+rename commit
// keeps partially written payloads invisible to readers.
type FSBlobStore struct {
	basePath string
}

// NewFSBlobStore creates a filesystem blob store rooted at basePath.
//
// The base directory and its staging subdirectory are created if missing
// (permissions 0755).
func NewFSBlobStore(ctx context.Context, basePath string) (*FSBlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(basePath, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	return &FSBlobStore{basePath: basePath}, nil
}

// blobPath returns the final path for a committed handle.
func (s *FSBlobStore) blobPath(handle blob.Handle) string {
	return filepath.Join(s.basePath, string(handle))
}

// Put stores a complete payload in one operation.
//
// The payload is staged and renamed into place, the same commit path used
// by streamed writes.
func (s *FSBlobStore) Put(ctx context.Context, data []byte) (blob.Handle, error) {
	w, err := s.NewWriter(ctx)
	if err != nil {
		return "", err
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Abort(ctx)
		return "", err
	}

	return w.Commit(ctx)
}

// NewWriter begins a streamed write into the staging directory.
func (s *FSBlobStore) NewWriter(ctx context.Context) (blob.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stagingPath := filepath.Join(s.basePath, stagingDir, uuid.New().String())

	f, err := os.OpenFile(stagingPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	return &fsWriter{store: s, file: f, stagingPath: stagingPath}, nil
}

// Open returns a reader for the committed payload.
func (s *FSBlobStore) Open(ctx context.Context, handle blob.Handle) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.blobPath(handle))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("open %s: %w", handle, blob.ErrBlobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", handle, err)
	}

	return f, nil
}

// Size returns the committed payload size via a stat call.
func (s *FSBlobStore) Size(ctx context.Context, handle blob.Handle) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.blobPath(handle))
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("size %s: %w", handle, blob.ErrBlobNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat blob %s: %w", handle, err)
	}

	return uint64(info.Size()), nil
}

// Delete removes the payload file. Deleting a missing handle is a no-op.
func (s *FSBlobStore) Delete(ctx context.Context, handle blob.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.blobPath(handle))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", handle, err)
	}

	return nil
}

// List returns every committed handle by scanning the base directory.
// Staging files are excluded: they are not committed.
func (s *FSBlobStore) List(ctx context.Context) ([]blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob directory: %w", err)
	}

	handles := make([]blob.Handle, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		handles = append(handles, blob.Handle(entry.Name()))
	}

	return handles, nil
}

// Healthcheck verifies the base directory is accessible.
func (s *FSBlobStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(s.basePath); err != nil {
		return fmt.Errorf("blob directory not accessible: %w", err)
	}

	return nil
}

// Close is a no-op: the store holds no open handles between operations.
func (s *FSBlobStore) Close() error {
	return nil
}

// fsWriter is a streamed write staged on disk until Commit renames it into
// place.
type fsWriter struct {
	store       *FSBlobStore
	file        *os.File
	stagingPath string
	closed      bool
}

func (w *fsWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, blob.ErrWriterClosed
	}
	return w.file.Write(p)
}

func (w *fsWriter) Commit(ctx context.Context) (blob.Handle, error) {
	if w.closed {
		return "", blob.ErrWriterClosed
	}
	w.closed = true

	if err := ctx.Err(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.stagingPath)
		return "", err
	}

	// Flush to disk before the rename publishes the handle.
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(w.stagingPath)
		return "", fmt.Errorf("failed to sync staging file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.stagingPath)
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}

	handle := blob.NewHandle()
	if err := os.Rename(w.stagingPath, w.store.blobPath(handle)); err != nil {
		_ = os.Remove(w.stagingPath)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return handle, nil
}

func (w *fsWriter) Abort(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.file.Close()
	if err := os.Remove(w.stagingPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staging file: %w", err)
	}

	return nil
}
