package users

import (
	"time"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// User is a registered account with its quota state.
//
// UsedBytes is a denormalized counter: it is updated alongside every
// size-changing entry mutation but lives in a different store, so it can
// drift transiently from the true sum of owned file sizes. It is treated
// as advisory and recomputed by quota reconciliation when drift is
// suspected.
type User struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Username string `gorm:"uniqueIndex;not null;size:255" json:"username"`

	// QuotaBytes is the storage capacity. 0 means no storage allowed;
	// there is no unlimited sentinel.
	QuotaBytes int64 `gorm:"not null" json:"quota_bytes"`

	// UsedBytes is the advisory running total of bytes consumed by
	// owned, non-permanently-deleted files. Never negative.
	UsedBytes int64 `gorm:"not null;default:0" json:"used_bytes"`

	// HomeEntryID references the user's home directory entry in the
	// metadata store, created at user bootstrap.
	HomeEntryID string `gorm:"size:36" json:"home_entry_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserID returns the account's ID as the metadata layer's user type.
func (u *User) UserID() metadata.UserID {
	return metadata.UserID(u.ID)
}

// AllModels returns all models for GORM auto-migration.
func AllModels() []any {
	return []any{
		&User{},
	}
}
