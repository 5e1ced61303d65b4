package drive

import (
	"context"
	"sort"
	"time"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// Entry lifecycle: Active -> SoftDeleted -> Restored(=Active) or
// PermanentlyDeleted (terminal). Soft deletion is reversible and keeps the
// bytes counted against the owner's quota, matching trash-bin semantics;
// permanent deletion reclaims the blob and the quota and is final.

// ProvisionUser creates an account and bootstraps its home directory.
//
// The home directory is a plain Directory entry named after the user,
// rooted at "/", recorded on the User row. If the entry cannot be created
// the account is rolled back.
func (d *Drive) ProvisionUser(ctx context.Context, username string, quotaBytes int64) (user *users.User, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("ProvisionUser", time.Since(start), err)
	}()

	if err = metadata.ValidateName(username); err != nil {
		return nil, err
	}

	user = &users.User{Username: username, QuotaBytes: quotaBytes}
	if err = d.ledger.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	home, err := d.CreateDirectory(ctx, user.UserID(), "/", username)
	if err != nil {
		if rbErr := d.ledger.users.DeleteUser(ctx, user.UserID()); rbErr != nil {
			logger.Error("Failed to roll back user %s after home directory failure: %v", username, rbErr)
		}
		return nil, err
	}

	if err = d.ledger.users.SetHomeEntry(ctx, user.UserID(), home.ID); err != nil {
		return nil, err
	}
	user.HomeEntryID = string(home.ID)

	return user, nil
}

// SoftDelete marks an entry as trashed.
//
// Requires the delete capability, checked on the target only; the cascade
// into a directory's subtree is part of the one authorized operation.
// Trashed entries disappear from listings but stay addressable by ID;
// their bytes remain counted against the owner's quota until permanent
// deletion. Soft-deleting an already trashed entry is a no-op.
//
// For a directory every live descendant is trashed too, so a later
// directory created under the freed name starts empty instead of adopting
// the old children. Descendants trashed earlier keep their original
// deletion stamp. Sub-step failures do not stop the cascade; they are
// collected into a PartialFailureError while the marked prefix stays
// applied.
func (d *Drive) SoftDelete(ctx context.Context, actor metadata.UserID, id metadata.EntryID) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("SoftDelete", time.Since(start), err)
	}()

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = requireAccess(current, actor, metadata.CapabilityDelete); err != nil {
		return nil, err
	}
	if current.IsDeleted {
		return current, nil
	}

	now := d.clock.Now()
	markTrashed := func(e *metadata.Entry) error {
		e.IsDeleted = true
		e.DeletedAt = &now
		e.DeletedBy = actor
		e.UpdatedAt = now
		return nil
	}

	var failed []FailedEntry
	if current.Kind == metadata.KindDirectory {
		// Enumerate the live subtree before mutating it.
		dirPath := current.Path()
		var descendants []metadata.EntryID
		q := metadata.Query{Owner: current.Owner}
		err = d.entries.Query(ctx, q, func(e *metadata.Entry) error {
			if metadata.HasPathPrefix(e.ParentPath, dirPath) {
				descendants = append(descendants, e.ID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, descID := range descendants {
			if _, stepErr := d.entries.UpdateEntry(ctx, descID, markTrashed); stepErr != nil {
				logger.Warn("Soft delete of descendant %s failed: %v", descID, stepErr)
				failed = append(failed, FailedEntry{ID: descID, Err: stepErr})
			}
		}
	}

	// The target goes last, so a failed cascade never hides descendants
	// under a directory that is already gone from listings.
	entry, err = d.entries.UpdateEntry(ctx, id, markTrashed)
	if err != nil {
		return nil, err
	}

	if err = partialFailure("soft delete", failed); err != nil {
		return entry, err
	}
	return entry, nil
}

// Restore brings a trashed entry back into the namespace.
//
// Allowed for the owner or anyone holding the write capability. Fails
// with a conflict StoreError if a live sibling now occupies the same
// (parentPath, name) slot. Size and content come back exactly as trashed.
func (d *Drive) Restore(ctx context.Context, actor metadata.UserID, id metadata.EntryID) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("Restore", time.Since(start), err)
	}()

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != current.Owner {
		if err = requireAccess(current, actor, metadata.CapabilityWrite); err != nil {
			return nil, err
		}
	}
	if !current.IsDeleted {
		return current, nil
	}

	now := d.clock.Now()
	entry, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		e.IsDeleted = false
		e.DeletedAt = nil
		e.DeletedBy = ""
		e.UpdatedAt = now
		return nil
	})
	return entry, err
}

// ListTrashed returns the actor's soft-deleted entries, newest first.
func (d *Drive) ListTrashed(ctx context.Context, actor metadata.UserID) ([]*metadata.Entry, error) {
	var trashed []*metadata.Entry
	q := metadata.Query{Owner: actor, IncludeDeleted: true}
	err := d.entries.Query(ctx, q, func(e *metadata.Entry) error {
		if e.IsDeleted {
			trashed = append(trashed, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(trashed, func(i, j int) bool {
		a, b := trashed[i].DeletedAt, trashed[j].DeletedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return trashed, nil
}

// PermanentDelete removes an entry for good.
//
// Requires the delete capability, checked on the target only; the cascade
// into a directory's subtree is part of the one authorized operation.
//
// For a file: the blob is reclaimed best-effort, the owner's ledger is
// credited the file's size, and the record is hard-deleted. For a
// directory: every descendant, trashed or not, is permanently deleted the
// same way, then the directory itself. Sub-step failures do not stop the
// cascade; they are collected into a PartialFailureError while the
// successfully deleted prefix stays applied.
func (d *Drive) PermanentDelete(ctx context.Context, actor metadata.UserID, id metadata.EntryID) (err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("PermanentDelete", time.Since(start), err)
	}()

	target, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if err = requireAccess(target, actor, metadata.CapabilityDelete); err != nil {
		return err
	}

	if target.Kind == metadata.KindFile {
		return d.purgeFile(ctx, target)
	}

	// Enumerate the subtree before mutating it. Deleted descendants are
	// purged too.
	dirPath := target.Path()
	var descendants []*metadata.Entry
	q := metadata.Query{Owner: target.Owner, IncludeDeleted: true}
	err = d.entries.Query(ctx, q, func(e *metadata.Entry) error {
		if metadata.HasPathPrefix(e.ParentPath, dirPath) {
			descendants = append(descendants, e)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var failed []FailedEntry
	for _, desc := range descendants {
		var stepErr error
		if desc.Kind == metadata.KindFile {
			stepErr = d.purgeFile(ctx, desc)
		} else {
			stepErr = d.entries.DeleteEntry(ctx, desc.ID)
		}
		if stepErr != nil {
			logger.Warn("Permanent delete of descendant %s (%s) failed: %v", desc.ID, desc.Path(), stepErr)
			failed = append(failed, FailedEntry{ID: desc.ID, Err: stepErr})
		}
	}

	// The directory record goes last, so a failed cascade never orphans
	// descendants silently under a removed parent.
	if err = d.entries.DeleteEntry(ctx, id); err != nil {
		failed = append(failed, FailedEntry{ID: id, Err: err})
	}

	return partialFailure("permanent delete", failed)
}

// purgeFile reclaims one file: blob (best-effort, failures logged and
// swallowed), ledger credit, record removal.
func (d *Drive) purgeFile(ctx context.Context, entry *metadata.Entry) error {
	d.discardContent(ctx, entry.Content, entry.Path())

	if err := d.ledger.Commit(ctx, entry.Owner, -int64(entry.SizeBytes)); err != nil {
		// Ledger drift is reconcilable; record removal is the
		// operation's primary contract.
		logger.Warn("Failed to credit %d bytes to user %s: %v", entry.SizeBytes, entry.Owner, err)
	}

	return d.entries.DeleteEntry(ctx, entry.ID)
}
