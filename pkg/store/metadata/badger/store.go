// Package badger implements persistent metadata storage using BadgerDB.
//
// This backend is suitable for production deployments: entry records and
// the sibling index survive restarts, and Badger transactions give every
// single-entry operation (including its uniqueness check) true atomicity.
package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB.
//
// Thread Safety:
// BadgerDB transactions provide isolation; no additional locking is
// needed. Conflicting concurrent updates are retried by Badger's
// serializable snapshot isolation or surface as transaction conflicts,
// which this store retries.
//
// Storage Model:
// Entries live under "e:<id>" as JSON; a sibling index under
// "n:<owner>\x00<parentPath>\x00<name>" enforces uniqueness and serves
// directory listings (see keys.go for the schema).
type BadgerMetadataStore struct {
	db *badger.DB
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB
// metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without disk persistence. Useful for tests.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64).
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - config: Configuration including the DB path
//
// Returns:
//   - *BadgerMetadataStore: A store ready for concurrent use
//   - error: Error if the database cannot be opened
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if config.DBPath == "" && !config.InMemory {
		return nil, fmt.Errorf("db_path is required")
	}

	opts := badger.DefaultOptions(config.DBPath)
	opts = opts.WithInMemory(config.InMemory)
	opts = opts.WithLoggingLevel(badger.WARNING)
	// Entry records are small JSON blobs; compression overhead is not
	// worth it for this workload.
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerMetadataStore{db: db}, nil
}

// Healthcheck verifies the database is open and serving reads.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.db.IsClosed() {
		return fmt.Errorf("database is closed")
	}

	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("healthcheck"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Close flushes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on Badger's
// optimistic-concurrency conflicts.
func (s *BadgerMetadataStore) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
}

// loadEntry reads and decodes an entry inside a transaction.
func loadEntry(txn *badger.Txn, id metadata.EntryID) (*metadata.Entry, error) {
	item, err := txn.Get(keyEntry(id))
	if err == badger.ErrKeyNotFound {
		return nil, metadata.NewNotFound(string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", id, err)
	}

	var entry *metadata.Entry
	err = item.Value(func(val []byte) error {
		entry, err = decodeEntry(val)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// storeEntry encodes and writes an entry inside a transaction.
func storeEntry(txn *badger.Txn, entry *metadata.Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := txn.Set(keyEntry(entry.ID), data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", entry.ID, err)
	}
	return nil
}

// siblingTaken reports whether the sibling slot is held by an entry other
// than self.
func siblingTaken(txn *badger.Txn, entry *metadata.Entry, self metadata.EntryID) (bool, error) {
	item, err := txn.Get(keySibling(entry.Owner, entry.ParentPath, entry.Name))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read sibling index: %w", err)
	}

	var holder []byte
	if holder, err = item.ValueCopy(nil); err != nil {
		return false, fmt.Errorf("failed to read sibling index: %w", err)
	}

	return metadata.EntryID(holder) != self, nil
}
