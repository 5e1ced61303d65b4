package drive

import (
	"context"
	"time"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// MigrationStats summarizes a bulk content migration run.
type MigrationStats struct {
	// Scanned is the number of migration candidates examined.
	Scanned int

	// Migrated is the number of entries whose payload moved to the blob
	// store.
	Migrated int

	// BytesMoved is the total payload bytes written to the blob store.
	BytesMoved int64
}

// MigrateInlineToBlob converts inline-stored file payloads that exceed
// the configured inline threshold to blob store payloads. With inlining
// disabled every inline payload is converted.
//
// Intended for offline/bulk use, typically after lowering the inline
// threshold or moving to a new blob backend. Entries are processed one at
// a time with per-entry failure isolation: a failed migration leaves that
// entry inline and moves on, and the failures come back as a
// PartialFailureError alongside the stats for the entries that did
// migrate.
//
// The contentRef swap is atomic (a single entry update), and the payload
// is fully committed in the blob store before the swap, so a crash midway
// leaves every entry readable through exactly one representation. If the
// entry changed between the blob write and the swap, the new blob is
// discarded and the entry is skipped, never overwritten.
func (d *Drive) MigrateInlineToBlob(ctx context.Context) (stats MigrationStats, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("MigrateInlineToBlob", time.Since(start), err)
	}()

	// Snapshot the candidates first; the per-entry work mutates the
	// store being scanned.
	var candidates []metadata.EntryID
	q := metadata.Query{IncludeDeleted: true}
	err = d.entries.Query(ctx, q, func(e *metadata.Entry) error {
		if e.Kind != metadata.KindFile || e.Content == nil || !e.Content.IsInline() {
			return nil
		}
		if d.inlineThreshold >= 0 && int64(e.SizeBytes) <= d.inlineThreshold {
			// Still within the threshold, leave it where it is.
			return nil
		}
		candidates = append(candidates, e.ID)
		return nil
	})
	if err != nil {
		return stats, err
	}

	var failed []FailedEntry
	for _, id := range candidates {
		stats.Scanned++

		moved, migrateErr := d.migrateEntry(ctx, id)
		if migrateErr != nil {
			logger.Warn("Migration of entry %s failed, leaving it inline: %v", id, migrateErr)
			failed = append(failed, FailedEntry{ID: id, Err: migrateErr})
			continue
		}
		if moved > 0 {
			stats.Migrated++
			stats.BytesMoved += moved
		}
	}

	logger.Info("Content migration finished: %d scanned, %d migrated, %d bytes moved, %d failed",
		stats.Scanned, stats.Migrated, stats.BytesMoved, len(failed))

	return stats, partialFailure("content migration", failed)
}

// migrateEntry moves one entry's inline payload to the blob store and
// swaps its contentRef. Returns the payload size, or 0 if the entry no
// longer needed migration.
func (d *Drive) migrateEntry(ctx context.Context, id metadata.EntryID) (int64, error) {
	entry, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return 0, err
	}
	if entry.Content == nil || !entry.Content.IsInline() {
		return 0, nil
	}

	payload := entry.Content.Inline
	handle, err := d.blobs.Put(ctx, payload)
	if err != nil {
		return 0, err
	}

	swapped := false
	_, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		if e.Content == nil || !e.Content.IsInline() {
			// Someone migrated or rewrote it in the meantime.
			return nil
		}
		content := metadata.BlobContent(handle)
		e.Content = &content
		e.UpdatedAt = d.clock.Now()
		swapped = true
		return nil
	})
	if err != nil || !swapped {
		// The blob is unreferenced either way; reclaim it now rather
		// than waiting for the garbage collector.
		if delErr := d.blobs.Delete(ctx, handle); delErr != nil {
			logger.Warn("Failed to delete unused migration blob %s: %v", handle, delErr)
		}
		return 0, err
	}

	return int64(len(payload)), nil
}
