package badger

import (
	"encoding/json"
	"fmt"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// Entries are stored as JSON. The records are small, the schema evolves,
// and being able to inspect the database with badger's CLI tooling is
// worth more than the bytes a binary encoding would save.

// encodeEntry serializes an entry for storage.
func encodeEntry(entry *metadata.Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry %s: %w", entry.ID, err)
	}
	return data, nil
}

// decodeEntry deserializes an entry from storage.
func decodeEntry(data []byte) (*metadata.Entry, error) {
	var entry metadata.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &entry, nil
}
