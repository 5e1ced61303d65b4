package drive

import (
	"fmt"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// PartialFailureError reports a bulk operation that completed some but not
// all of its sub-steps.
//
// Cascade operations (directory rename/move, directory permanent delete,
// bulk content migration) are sequences of independent single-entry
// operations: the engine continues past individual failures, applies the
// successful prefix, and returns this error so the caller can decide
// whether to retry the remainder.
type PartialFailureError struct {
	// Op names the bulk operation that partially failed.
	Op string

	// Failed lists the entries whose sub-step failed, with the cause.
	Failed []FailedEntry
}

// FailedEntry is one sub-step failure inside a bulk operation.
type FailedEntry struct {
	ID  metadata.EntryID
	Err error
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially failed: %d entries could not be processed", e.Op, len(e.Failed))
}

// FailedIDs returns the IDs of the entries whose sub-step failed.
func (e *PartialFailureError) FailedIDs() []metadata.EntryID {
	ids := make([]metadata.EntryID, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// partialFailure builds a PartialFailureError, or nil when every sub-step
// succeeded.
func partialFailure(op string, failed []FailedEntry) error {
	if len(failed) == 0 {
		return nil
	}
	return &PartialFailureError{Op: op, Failed: failed}
}
