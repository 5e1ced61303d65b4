package badger

import (
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// data into logical namespaces. This design:
//   - Prevents key collisions between different data types
//   - Enables efficient range scans (all children of a directory)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Data Type         Prefix   Key Format                              Value
// ==========================================================================
// Entry Records     "e:"     e:<uuid>                                Entry (JSON)
// Sibling Index     "n:"     n:<owner>\x00<parentPath>\x00<name>     entryID (bytes)
//
// Key Design Rationale:
//
// 1. Entry Records (e:)
//    - One record per entry, point lookup by ID: O(1)
//    - Stores the complete Entry struct as JSON
//    - Example: e:550e8400-e29b-41d4-a716-446655440000
//
// 2. Sibling Index (n:)
//    - Maintained ONLY for non-deleted entries. It serves double duty:
//      a conflicting create/rename/move/restore finds the slot taken,
//      and a directory listing range-scans n:<owner>\x00<parentPath>\x00
//      instead of scanning every record.
//    - NUL separators are safe because names and paths reject NUL.
//    - Updated inside the same transaction as the entry record, so the
//      constraint and the record never disagree.
//    - Example: n:alice\x00/Docs\x00readme.txt → entry-id-bytes

const (
	entryPrefix   = "e:"
	siblingPrefix = "n:"
	sep           = "\x00"
)

// keyEntry returns the record key for an entry ID.
func keyEntry(id metadata.EntryID) []byte {
	return []byte(entryPrefix + string(id))
}

// keySibling returns the uniqueness/listing index key of an entry.
func keySibling(owner metadata.UserID, parentPath, name string) []byte {
	return []byte(siblingPrefix + string(owner) + sep + parentPath + sep + name)
}

// keySiblingScan returns the range-scan prefix for all non-deleted
// children of a directory.
func keySiblingScan(owner metadata.UserID, parentPath string) []byte {
	return []byte(siblingPrefix + string(owner) + sep + parentPath + sep)
}
