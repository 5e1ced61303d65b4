package drive

import (
	"context"
	"time"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// Share grants (or replaces) a grantee's capabilities on an entry.
//
// Requires the share capability, which only tier one of the permission
// model can ever satisfy: grants never include it, so sharing stays under
// the owner's control. Sharing the same entry with the same grantee again
// overwrites the previous grant; there is never more than one grant per
// (entry, grantee).
func (d *Drive) Share(ctx context.Context, actor metadata.UserID, id metadata.EntryID, grantee metadata.UserID, grant metadata.ShareGrant) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("Share", time.Since(start), err)
	}()

	if grantee == "" {
		return nil, metadata.NewValidation("grantee must not be empty", "")
	}

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = requireAccess(current, actor, metadata.CapabilityShare); err != nil {
		return nil, err
	}
	if grantee == current.Owner {
		return nil, metadata.NewValidation("cannot share an entry with its owner", current.Path())
	}

	now := d.clock.Now()
	grant.GrantedAt = now

	entry, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		if e.Shares == nil {
			e.Shares = make(map[metadata.UserID]metadata.ShareGrant)
		}
		e.Shares[grantee] = grant
		e.UpdatedAt = now
		return nil
	})
	return entry, err
}

// Revoke removes a grantee's grant from an entry.
//
// Requires the share capability. Revoking a grantee who has no grant is a
// no-op.
func (d *Drive) Revoke(ctx context.Context, actor metadata.UserID, id metadata.EntryID, grantee metadata.UserID) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("Revoke", time.Since(start), err)
	}()

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = requireAccess(current, actor, metadata.CapabilityShare); err != nil {
		return nil, err
	}

	now := d.clock.Now()
	entry, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		delete(e.Shares, grantee)
		e.UpdatedAt = now
		return nil
	})
	return entry, err
}

// SetPermissions replaces an entry's owner and others capability sets.
//
// Requires the share capability: altering the access policy is part of
// sharing control. An owner can restrict their own access this way (an
// explicit false in ownerPermissions binds even the owner).
func (d *Drive) SetPermissions(ctx context.Context, actor metadata.UserID, id metadata.EntryID, owner, others metadata.Capabilities) (entry *metadata.Entry, err error) {
	start := d.clock.Now()
	defer func() {
		d.metrics.ObserveOperation("SetPermissions", time.Since(start), err)
	}()

	current, err := d.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = requireAccess(current, actor, metadata.CapabilityShare); err != nil {
		return nil, err
	}

	// The share capability stays out of the fallback policy: granting it
	// to everyone would hand sharing control to strangers.
	others.Share = false

	now := d.clock.Now()
	entry, err = d.entries.UpdateEntry(ctx, id, func(e *metadata.Entry) error {
		e.OwnerPermissions = owner
		e.OthersPermissions = others
		e.UpdatedAt = now
		return nil
	})
	return entry, err
}

// ListSharedWith returns the non-deleted entries shared with the actor,
// the "shared with me" view.
func (d *Drive) ListSharedWith(ctx context.Context, actor metadata.UserID) ([]*metadata.Entry, error) {
	var shared []*metadata.Entry
	err := d.entries.Query(ctx, metadata.Query{SharedWith: actor}, func(e *metadata.Entry) error {
		shared = append(shared, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shared, nil
}
