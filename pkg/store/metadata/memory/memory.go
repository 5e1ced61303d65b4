// Package memory implements in-memory metadata storage.
//
// This implementation is primarily useful for testing and ephemeral
// deployments. All state is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// siblingKey identifies the uniqueness slot of a non-deleted entry.
type siblingKey struct {
	owner      metadata.UserID
	parentPath string
	name       string
}

func keyOf(e *metadata.Entry) siblingKey {
	return siblingKey{owner: e.Owner, parentPath: e.ParentPath, name: e.Name}
}

// MemoryMetadataStore implements metadata.Store with in-memory maps.
//
// Thread Safety:
// A single RWMutex guards both the entry map and the sibling index, so
// every operation (including its uniqueness check) is one atomic critical
// section. Entries are cloned on the way in and out; callers never share
// pointers with stored state.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	// entries maps entry ID to the stored record.
	entries map[metadata.EntryID]*metadata.Entry

	// siblings indexes non-deleted entries by (owner, parentPath, name).
	// This is both the uniqueness constraint and the listing fast path.
	siblings map[siblingKey]metadata.EntryID

	closed bool
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore(ctx context.Context) (*MemoryMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryMetadataStore{
		entries:  make(map[metadata.EntryID]*metadata.Entry),
		siblings: make(map[siblingKey]metadata.EntryID),
	}, nil
}

// CreateEntry persists a new entry, enforcing sibling uniqueness.
func (s *MemoryMetadataStore) CreateEntry(ctx context.Context, entry *metadata.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		return metadata.NewValidation("entry ID must not be empty", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, exists := s.entries[entry.ID]; exists {
		return metadata.NewConflict(entry.Path())
	}

	if !entry.IsDeleted {
		if _, taken := s.siblings[keyOf(entry)]; taken {
			return metadata.NewConflict(entry.Path())
		}
	}

	stored := entry.Clone()
	s.entries[stored.ID] = stored
	if !stored.IsDeleted {
		s.siblings[keyOf(stored)] = stored.ID
	}

	return nil
}

// GetEntry returns the entry with the given ID, deleted or not.
func (s *MemoryMetadataStore) GetEntry(ctx context.Context, id metadata.EntryID) (*metadata.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, metadata.NewNotFound(string(id))
	}

	return entry.Clone(), nil
}

// UpdateEntry applies mutate atomically under the store lock.
func (s *MemoryMetadataStore) UpdateEntry(ctx context.Context, id metadata.EntryID, mutate func(*metadata.Entry) error) (*metadata.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.entries[id]
	if !exists {
		return nil, metadata.NewNotFound(string(id))
	}

	updated := current.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	updated.ID = current.ID
	updated.Owner = current.Owner

	// The uniqueness slot moves when the entry is renamed, moved,
	// restored, or soft-deleted.
	if !updated.IsDeleted {
		newKey := keyOf(updated)
		if holder, taken := s.siblings[newKey]; taken && holder != id {
			return nil, metadata.NewConflict(updated.Path())
		}
	}

	if !current.IsDeleted {
		delete(s.siblings, keyOf(current))
	}
	if !updated.IsDeleted {
		s.siblings[keyOf(updated)] = id
	}
	s.entries[id] = updated

	return updated.Clone(), nil
}

// DeleteEntry removes the record permanently.
func (s *MemoryMetadataStore) DeleteEntry(ctx context.Context, id metadata.EntryID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		return metadata.NewNotFound(string(id))
	}

	if !entry.IsDeleted {
		delete(s.siblings, keyOf(entry))
	}
	delete(s.entries, id)

	return nil
}

// Query scans all entries under a read lock, filtering with q.Matches.
//
// Visit callbacks run while the lock is held, on private clones; callers
// must not call back into the store from visit.
func (s *MemoryMetadataStore) Query(ctx context.Context, q metadata.Query, visit func(*metadata.Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if !q.Matches(entry) {
			continue
		}
		if err := visit(entry.Clone()); err != nil {
			if err == metadata.ErrStopQuery {
				return nil
			}
			return err
		}
	}

	return nil
}

// AllBlobHandles returns the blob handles referenced by any entry.
func (s *MemoryMetadataStore) AllBlobHandles(ctx context.Context) ([]blob.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var handles []blob.Handle
	for _, entry := range s.entries {
		if entry.Content != nil && entry.Content.Kind == metadata.ContentBlob {
			handles = append(handles, entry.Content.BlobHandle)
		}
	}

	return handles, nil
}

// Healthcheck reports whether the store is usable.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close marks the store closed and drops all state.
func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	s.siblings = nil
	return nil
}
