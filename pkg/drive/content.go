package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// writeContent stores a payload of the declared size, choosing the inline
// or blob representation by the configured threshold.
//
// Blob writes stream through a blob.Writer and are aborted on any failure,
// so a failed upload never leaves a reachable handle behind.
func (d *Drive) writeContent(ctx context.Context, size int64, r io.Reader) (metadata.ContentRef, error) {
	if size <= d.inlineThreshold {
		data, err := io.ReadAll(io.LimitReader(r, size+1))
		if err != nil {
			return metadata.ContentRef{}, fmt.Errorf("failed to read payload: %w", err)
		}
		if int64(len(data)) != size {
			return metadata.ContentRef{}, metadata.NewValidation("payload size does not match declared size", "")
		}
		return metadata.InlineContent(data), nil
	}

	w, err := d.blobs.NewWriter(ctx)
	if err != nil {
		return metadata.ContentRef{}, fmt.Errorf("failed to begin blob write: %w", err)
	}

	n, err := io.Copy(w, io.LimitReader(r, size+1))
	if err != nil {
		_ = w.Abort(ctx)
		return metadata.ContentRef{}, fmt.Errorf("failed to stream payload: %w", err)
	}
	if n != size {
		_ = w.Abort(ctx)
		return metadata.ContentRef{}, metadata.NewValidation("payload size does not match declared size", "")
	}

	handle, err := w.Commit(ctx)
	if err != nil {
		_ = w.Abort(ctx)
		return metadata.ContentRef{}, fmt.Errorf("failed to commit blob: %w", err)
	}

	d.metrics.AddContentBytes("write", size)
	return metadata.BlobContent(handle), nil
}

// openContent returns a reader for an entry's payload.
func (d *Drive) openContent(ctx context.Context, entry *metadata.Entry) (io.ReadCloser, error) {
	if entry.Content == nil {
		return nil, metadata.NewValidation("entry has no content", entry.Path())
	}

	if entry.Content.IsInline() {
		return io.NopCloser(bytes.NewReader(entry.Content.Inline)), nil
	}

	rc, err := d.blobs.Open(ctx, entry.Content.BlobHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob for %s: %w", entry.Path(), err)
	}
	return rc, nil
}

// discardContent reclaims an entry's blob, if it has one. Best-effort:
// failures are logged and swallowed, the metadata removal is the
// operation's primary contract and the garbage collector sweeps leftovers.
func (d *Drive) discardContent(ctx context.Context, ref *metadata.ContentRef, path string) {
	if ref == nil || ref.IsInline() {
		return
	}
	if err := d.blobs.Delete(ctx, ref.BlobHandle); err != nil {
		logger.Warn("Failed to delete blob %s for %s: %v", ref.BlobHandle, path, err)
	}
}

// Download opens an entry's payload for the acting user.
//
// Requires the read capability. Soft-deleted files remain downloadable by
// ID; they have disappeared from listings only. The returned entry is the
// record at open time; the caller must close the reader.
func (d *Drive) Download(ctx context.Context, actor metadata.UserID, id metadata.EntryID) (rc io.ReadCloser, entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("Download", time.Since(start), err)
	}()

	entry, err = d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if entry.Kind != metadata.KindFile {
		return nil, nil, metadata.NewValidation("cannot download a directory", entry.Path())
	}
	if err = requireAccess(entry, actor, metadata.CapabilityRead); err != nil {
		return nil, nil, err
	}

	rc, err = d.openContent(ctx, entry)
	if err != nil {
		return nil, nil, err
	}

	d.metrics.AddContentBytes("read", int64(entry.SizeBytes))
	return rc, entry, nil
}

// GetEntry returns an entry by ID for the acting user.
//
// Requires the read capability. Deleted entries are returned as well; the
// caller can see the deletion state on the record.
func (d *Drive) GetEntry(ctx context.Context, actor metadata.UserID, id metadata.EntryID) (*metadata.Entry, error) {
	entry, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAccess(entry, actor, metadata.CapabilityRead); err != nil {
		return nil, err
	}
	return entry, nil
}
