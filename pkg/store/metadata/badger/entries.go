package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// CreateEntry persists a new entry, enforcing sibling uniqueness inside
// the same transaction that writes the record.
func (s *BadgerMetadataStore) CreateEntry(ctx context.Context, entry *metadata.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		return metadata.NewValidation("entry ID must not be empty", "")
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyEntry(entry.ID)); err == nil {
			return metadata.NewConflict(entry.Path())
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to read entry %s: %w", entry.ID, err)
		}

		if !entry.IsDeleted {
			taken, err := siblingTaken(txn, entry, entry.ID)
			if err != nil {
				return err
			}
			if taken {
				return metadata.NewConflict(entry.Path())
			}
		}

		if err := storeEntry(txn, entry); err != nil {
			return err
		}
		if !entry.IsDeleted {
			key := keySibling(entry.Owner, entry.ParentPath, entry.Name)
			if err := txn.Set(key, []byte(entry.ID)); err != nil {
				return fmt.Errorf("failed to write sibling index: %w", err)
			}
		}
		return nil
	})
}

// GetEntry returns the entry with the given ID, deleted or not.
func (s *BadgerMetadataStore) GetEntry(ctx context.Context, id metadata.EntryID) (*metadata.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *metadata.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = loadEntry(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// UpdateEntry applies mutate inside one transaction, moving the sibling
// index when the entry's uniqueness slot changes.
func (s *BadgerMetadataStore) UpdateEntry(ctx context.Context, id metadata.EntryID, mutate func(*metadata.Entry) error) (*metadata.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *metadata.Entry
	err := s.update(func(txn *badger.Txn) error {
		current, err := loadEntry(txn, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.Owner = current.Owner

		if !next.IsDeleted {
			taken, err := siblingTaken(txn, next, id)
			if err != nil {
				return err
			}
			if taken {
				return metadata.NewConflict(next.Path())
			}
		}

		oldKey := keySibling(current.Owner, current.ParentPath, current.Name)
		newKey := keySibling(next.Owner, next.ParentPath, next.Name)

		if !current.IsDeleted {
			if err := txn.Delete(oldKey); err != nil {
				return fmt.Errorf("failed to clear sibling index: %w", err)
			}
		}
		if !next.IsDeleted {
			if err := txn.Set(newKey, []byte(id)); err != nil {
				return fmt.Errorf("failed to write sibling index: %w", err)
			}
		}

		if err := storeEntry(txn, next); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteEntry removes the record and its index slot permanently.
func (s *BadgerMetadataStore) DeleteEntry(ctx context.Context, id metadata.EntryID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		entry, err := loadEntry(txn, id)
		if err != nil {
			return err
		}

		if !entry.IsDeleted {
			key := keySibling(entry.Owner, entry.ParentPath, entry.Name)
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to clear sibling index: %w", err)
			}
		}
		if err := txn.Delete(keyEntry(id)); err != nil {
			return fmt.Errorf("failed to delete entry %s: %w", id, err)
		}
		return nil
	})
}

// Query scans entries matching q.
//
// The listing query (Owner + ParentPath, deleted excluded) range-scans the
// sibling index instead of walking every record; everything else falls
// back to a full scan over the entry records with q.Matches.
func (s *BadgerMetadataStore) Query(ctx context.Context, q metadata.Query, visit func(*metadata.Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		if q.Owner != "" && q.ParentPath != "" && !q.IncludeDeleted && q.SharedWith == "" {
			return s.queryBySiblingIndex(ctx, txn, q, visit)
		}
		return s.queryFullScan(ctx, txn, q, visit)
	})
	if err == metadata.ErrStopQuery {
		return nil
	}
	return err
}

func (s *BadgerMetadataStore) queryBySiblingIndex(ctx context.Context, txn *badger.Txn, q metadata.Query, visit func(*metadata.Entry) error) error {
	prefix := keySiblingScan(q.Owner, q.ParentPath)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		idBytes, err := it.Item().ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read sibling index: %w", err)
		}

		entry, err := loadEntry(txn, metadata.EntryID(idBytes))
		if err != nil {
			return err
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerMetadataStore) queryFullScan(ctx context.Context, txn *badger.Txn, q metadata.Query, visit func(*metadata.Entry) error) error {
	prefix := []byte(entryPrefix)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var entry *metadata.Entry
		err := it.Item().Value(func(val []byte) error {
			var err error
			entry, err = decodeEntry(val)
			return err
		})
		if err != nil {
			return err
		}

		if !q.Matches(entry) {
			continue
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
	return nil
}

// AllBlobHandles walks every entry record and collects blob references.
func (s *BadgerMetadataStore) AllBlobHandles(ctx context.Context) ([]blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var handles []blob.Handle
	err := s.Query(ctx, metadata.Query{IncludeDeleted: true}, func(entry *metadata.Entry) error {
		if entry.Content != nil && entry.Content.Kind == metadata.ContentBlob {
			handles = append(handles, entry.Content.BlobHandle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return handles, nil
}
