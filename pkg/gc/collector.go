// Package gc provides garbage collection for orphaned blobs.
//
// The garbage collector identifies and removes blobs that are no longer
// referenced by any metadata entry. Orphans can occur due to:
//   - Server crashes between a blob commit and the entry write
//   - Failed cleanup after rejected uploads
//   - Bugs in metadata/blob coordination
//
// The collector works with any metadata.Store and blob.Store combination.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// Collector performs periodic garbage collection on a blob store.
//
// The collector runs in the background and periodically scans for blobs
// not referenced by any entry, deleting what it finds.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	entries metadata.Store
	blobs   blob.Store
	config  Config
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether garbage collection is active (default: false)
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration `mapstructure:"interval"`

	// DryRun mode logs what would be deleted without actually deleting
	// (default: false). Useful for testing and validation.
	DryRun bool `mapstructure:"dry_run"`
}

// NewCollector creates a new garbage collector.
//
// The collector will be initialized but not started. Call Start() to begin
// background garbage collection.
//
// Parameters:
//   - entries: Metadata store to query for referenced blobs
//   - blobs: Blob store to scan and delete orphans from
//   - config: Garbage collection configuration
func NewCollector(entries metadata.Store, blobs blob.Store, config Config) *Collector {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}

	return &Collector{
		entries: entries,
		blobs:   blobs,
		config:  config,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins background garbage collection.
//
// This starts a goroutine that periodically runs garbage collection at the
// configured interval. The goroutine runs until Stop() is called.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	logger.Info("Starting garbage collector: interval=%s dry_run=%v",
		c.config.Interval, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for it to finish.
//
// This signals the worker goroutine to stop and waits for it to complete
// any in-progress collection.
//
// Returns an error if the context expires before shutdown completes.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping garbage collector...")
	close(c.stopCh)

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate garbage collection run.
//
// Useful for manual triggers via the admin API and for initial cleanup on
// startup. Blocks until collection completes or the context is cancelled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic garbage collection.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single garbage collection run.
//
// The algorithm:
//  1. List all blobs in the blob store
//  2. Collect all blob handles referenced by metadata
//  3. Compute orphaned = existing - referenced
//  4. Delete orphaned blobs
//
// The blob listing is taken before the reference snapshot. A blob
// committed after the listing is never considered, and a blob in the
// listing whose entry lands before the reference scan is seen as
// referenced, so a completed upload can never be reclaimed. The one
// remaining exposure is an upload still between blob commit and entry
// creation when the reference scan runs; uploads finish in milliseconds
// and runs are hours apart.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	existing, err := c.blobs.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list blobs: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	referenced, err := c.entries.AllBlobHandles(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get referenced blobs: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))

	referencedSet := make(map[blob.Handle]struct{}, len(referenced))
	for _, h := range referenced {
		referencedSet[h] = struct{}{}
	}

	orphaned := make([]blob.Handle, 0)
	for _, h := range existing {
		if _, ok := referencedSet[h]; !ok {
			orphaned = append(orphaned, h)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		logger.Debug("GC: No orphaned blobs found")
		stats.EndTime = time.Now()
		return stats, nil
	}

	logger.Info("GC: Found %d orphaned blobs (%d referenced, %d existing)",
		stats.OrphanedCount, stats.ReferencedCount, stats.ExistingCount)

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - Would delete %d blobs:", stats.OrphanedCount)
		for i, h := range orphaned {
			if i >= 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s", h)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	for _, h := range orphaned {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		if err := c.blobs.Delete(ctx, h); err != nil {
			logger.Warn("GC: Failed to delete blob %s: %v", h, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	stats.EndTime = time.Now()

	logger.Info("GC: Completed - deleted %d blobs, %d failed, duration=%s",
		stats.DeletedCount, stats.FailedCount, stats.Duration())

	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount uint64    // Number of blob handles referenced by metadata
	ExistingCount   uint64    // Number of blobs in the blob store
	OrphanedCount   uint64    // Number of orphaned blobs found
	DeletedCount    uint64    // Number of orphans successfully deleted
	FailedCount     uint64    // Number of orphans that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
