// Package drive implements the file store's engines on top of the storage
// tier: the namespace engine (hierarchy emulated over the flat metadata
// store), the permission engine, the quota ledger, the lifecycle manager
// and the sharing subsystem.
//
// A Drive is a stateless service over the shared stores: construct one and
// pass it by reference. All operations take the acting user explicitly;
// authentication happens outside this package.
package drive

import (
	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// DefaultInlineThreshold is the largest payload stored inline in the entry
// record when no threshold is configured. Larger payloads go to the blob
// store.
const DefaultInlineThreshold = 64 * 1024

// Config contains drive behavior configuration.
type Config struct {
	// InlineThreshold is the maximum payload size in bytes stored inline
	// in the entry record. Payloads above it stream to the blob store.
	// Defaults to DefaultInlineThreshold; 0 keeps the default, use a
	// negative value to disable inlining entirely.
	InlineThreshold int64 `mapstructure:"inline_threshold"`
}

// Drive composes the metadata store, blob store and user registry into the
// file store's operation surface.
type Drive struct {
	entries metadata.Store
	blobs   blob.Store
	ledger  *Ledger

	clock           Clock
	metrics         Metrics
	inlineThreshold int64
}

// Option customizes a Drive at construction time.
type Option func(*Drive)

// WithClock replaces the wall clock. Tests use this for deterministic
// timestamps.
func WithClock(clock Clock) Option {
	return func(d *Drive) { d.clock = clock }
}

// WithMetrics attaches an operation metrics collector.
func WithMetrics(m Metrics) Option {
	return func(d *Drive) { d.metrics = m }
}

// New creates a Drive over the given stores.
func New(cfg Config, entries metadata.Store, blobs blob.Store, userStore users.Store, opts ...Option) *Drive {
	threshold := cfg.InlineThreshold
	if threshold == 0 {
		threshold = DefaultInlineThreshold
	}
	if threshold < 0 {
		threshold = -1
	}

	d := &Drive{
		entries:         entries,
		blobs:           blobs,
		ledger:          NewLedger(userStore, entries),
		clock:           RealClock{},
		metrics:         noopMetrics{},
		inlineThreshold: threshold,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Ledger exposes the drive's quota ledger for callers that report storage
// statistics.
func (d *Drive) Ledger() *Ledger {
	return d.ledger
}
