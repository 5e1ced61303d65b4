package drive

import (
	"context"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// Ledger tracks bytes-used per user.
//
// The running total is a denormalized counter on the User row, updated
// with single-row atomic SQL so concurrent reservations cannot both slip
// past the quota. The counter covers owned, non-permanently-deleted files:
// soft-deleted entries still count until they are purged.
//
// The entry write and the counter write are two separate stores with no
// cross-store transaction, so the counter can drift transiently (a crash
// between the two writes, a partially failed cascade). It is advisory:
// Reconcile recomputes it from a full scan when drift is suspected.
type Ledger struct {
	users   users.Store
	entries metadata.Store
}

// NewLedger creates a quota ledger over the user registry and the
// metadata store.
func NewLedger(userStore users.Store, entries metadata.Store) *Ledger {
	return &Ledger{users: userStore, entries: entries}
}

// Reserve claims delta bytes against the user's quota before a
// size-increasing write.
//
// Returns a quota StoreError when the reservation would exceed the quota.
// A successful reservation already counts the bytes as used; if the write
// it guards fails, release it with Commit(-delta).
func (l *Ledger) Reserve(ctx context.Context, user metadata.UserID, delta int64) error {
	if delta == 0 {
		return nil
	}
	return l.users.Reserve(ctx, user, delta)
}

// Commit applies a signed byte delta to the user's running total, after a
// write succeeded (negative deltas: after a delete, or to undo a
// reservation whose write failed).
func (l *Ledger) Commit(ctx context.Context, user metadata.UserID, delta int64) error {
	return l.users.Commit(ctx, user, delta)
}

// release undoes a reservation whose guarded write failed. Failures are
// logged, not surfaced: the original error matters more, and the drift is
// reconcilable.
func (l *Ledger) release(ctx context.Context, user metadata.UserID, delta int64) {
	if delta == 0 {
		return
	}
	if err := l.users.Commit(ctx, user, -delta); err != nil {
		logger.Warn("Failed to release %d reserved bytes for user %s: %v", delta, user, err)
	}
}

// UsedBytes returns the user's advisory running total.
func (l *Ledger) UsedBytes(ctx context.Context, user metadata.UserID) (int64, error) {
	u, err := l.users.GetUser(ctx, user)
	if err != nil {
		return 0, err
	}
	return u.UsedBytes, nil
}

// Usage returns the user's running total and quota capacity in one read.
func (l *Ledger) Usage(ctx context.Context, user metadata.UserID) (used, quota int64, err error) {
	u, err := l.users.GetUser(ctx, user)
	if err != nil {
		return 0, 0, err
	}
	return u.UsedBytes, u.QuotaBytes, nil
}

// Reconcile recomputes the user's counter from a full scan over their
// entries and overwrites the stored value.
//
// Soft-deleted files are included: their bytes stay used until permanent
// deletion. Returns the recomputed total and the drift that was corrected
// (recomputed minus previous counter).
func (l *Ledger) Reconcile(ctx context.Context, user metadata.UserID) (total, drift int64, err error) {
	previous, err := l.UsedBytes(ctx, user)
	if err != nil {
		return 0, 0, err
	}

	q := metadata.Query{Owner: user, IncludeDeleted: true}
	err = l.entries.Query(ctx, q, func(e *metadata.Entry) error {
		if e.Kind == metadata.KindFile {
			total += int64(e.SizeBytes)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if err := l.users.SetUsedBytes(ctx, user, total); err != nil {
		return 0, 0, err
	}

	drift = total - previous
	if drift != 0 {
		logger.Info("Reconciled quota for user %s: %d bytes (drift %+d)", user, total, drift)
	}
	return total, drift, nil
}
