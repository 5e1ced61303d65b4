// Package users implements the user registry and the persistent side of
// quota accounting.
//
// Both backends (SQLite for single-node deployments, PostgreSQL when an
// external database is preferred) run through GORM from the same codebase.
// Quota arithmetic happens inside single-row atomic UPDATE statements, so
// concurrent reservations against one user cannot both slip past the
// quota guard.
package users

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
)

// DatabaseType defines the supported database backends.
type DatabaseType string

const (
	// DatabaseTypeSQLite uses SQLite (single-node, default).
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres uses PostgreSQL.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string `mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// Config contains user store configuration.
type Config struct {
	Type     DatabaseType   `mapstructure:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}
	if c.Type == DatabaseTypePostgres {
		if c.Postgres.Port == 0 {
			c.Postgres.Port = 5432
		}
		if c.Postgres.SSLMode == "" {
			c.Postgres.SSLMode = "disable"
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// Store is the user registry interface consumed by the drive layer.
type Store interface {
	// CreateUser persists a new account. A missing ID is generated.
	// Returns a conflict StoreError if the username is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUser returns the account with the given ID.
	GetUser(ctx context.Context, id metadata.UserID) (*User, error)

	// GetUserByUsername returns the account with the given username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers returns every account.
	ListUsers(ctx context.Context) ([]*User, error)

	// DeleteUser removes an account. The caller is responsible for the
	// user's entries; the registry does not cascade into the metadata
	// store.
	DeleteUser(ctx context.Context, id metadata.UserID) error

	// SetHomeEntry records the user's home directory entry ID.
	SetHomeEntry(ctx context.Context, id metadata.UserID, entryID metadata.EntryID) error

	// Reserve atomically adds delta to the user's used counter, failing
	// with a quota StoreError when the result would exceed the quota.
	// A successful reservation must later be balanced: either the write
	// it guarded succeeds, or the caller releases it with Commit(-delta).
	Reserve(ctx context.Context, id metadata.UserID, delta int64) error

	// Commit atomically adds the signed delta to the used counter
	// without a quota guard, clamping at zero.
	Commit(ctx context.Context, id metadata.UserID, delta int64) error

	// SetUsedBytes overwrites the used counter. Used by reconciliation.
	SetUsedBytes(ctx context.Context, id metadata.UserID, used int64) error

	// Healthcheck verifies the database is reachable.
	Healthcheck(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// GORMStore implements Store using GORM over SQLite or PostgreSQL.
type GORMStore struct {
	db *gorm.DB
}

// New creates a user store based on the configuration and runs the GORM
// auto-migration.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user store configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL for concurrent readers, busy_timeout so writers wait for
		// the lock instead of failing.
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &GORMStore{db: db}, nil
}

// CreateUser persists a new account.
func (s *GORMStore) CreateUser(ctx context.Context, user *User) error {
	if user.Username == "" {
		return metadata.NewValidation("username must not be empty", "")
	}
	if user.QuotaBytes < 0 {
		return metadata.NewValidation("quota must not be negative", "")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	err := s.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return metadata.NewError(metadata.ErrConflict, "username already taken", user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a unique constraint
// violation, in either SQLite or PostgreSQL phrasing.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// GetUser returns the account with the given ID.
func (s *GORMStore) GetUser(ctx context.Context, id metadata.UserID) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, metadata.NewError(metadata.ErrNotFound, "user not found", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername returns the account with the given username.
func (s *GORMStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, metadata.NewError(metadata.ErrNotFound, "user not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns every account ordered by username.
func (s *GORMStore) ListUsers(ctx context.Context) ([]*User, error) {
	var list []*User
	if err := s.db.WithContext(ctx).Order("username").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return list, nil
}

// DeleteUser removes an account.
func (s *GORMStore) DeleteUser(ctx context.Context, id metadata.UserID) error {
	result := s.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewError(metadata.ErrNotFound, "user not found", string(id))
	}
	return nil
}

// SetHomeEntry records the user's home directory entry ID.
func (s *GORMStore) SetHomeEntry(ctx context.Context, id metadata.UserID, entryID metadata.EntryID) error {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", string(id)).
		Update("home_entry_id", string(entryID))
	if result.Error != nil {
		return fmt.Errorf("failed to set home entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewError(metadata.ErrNotFound, "user not found", string(id))
	}
	return nil
}

// Reserve atomically claims delta bytes against the user's quota.
//
// The guard runs inside the UPDATE itself, so two concurrent reservations
// can never both succeed past the quota: the database serializes the row
// update.
func (s *GORMStore) Reserve(ctx context.Context, id metadata.UserID, delta int64) error {
	if delta <= 0 {
		return metadata.NewValidation("reservation must be positive", "")
	}

	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND used_bytes + ? <= quota_bytes", string(id), delta).
		Update("used_bytes", gorm.Expr("used_bytes + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to reserve quota: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Distinguish a missing user from a failed guard.
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
		return metadata.NewError(metadata.ErrQuotaExceeded, "storage quota exceeded", string(id))
	}
	return nil
}

// Commit atomically applies a signed delta to the used counter.
//
// Negative deltas release storage (permanent delete, undone write). The
// counter clamps at zero: reconciliation drift must never drive it
// negative.
func (s *GORMStore) Commit(ctx context.Context, id metadata.UserID, delta int64) error {
	if delta == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", string(id)).
		Update("used_bytes", gorm.Expr(
			"CASE WHEN used_bytes + ? < 0 THEN 0 ELSE used_bytes + ? END", delta, delta))
	if result.Error != nil {
		return fmt.Errorf("failed to commit quota delta: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewError(metadata.ErrNotFound, "user not found", string(id))
	}
	return nil
}

// SetUsedBytes overwrites the used counter with a recomputed value.
func (s *GORMStore) SetUsedBytes(ctx context.Context, id metadata.UserID, used int64) error {
	if used < 0 {
		return metadata.NewValidation("used bytes must not be negative", "")
	}

	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", string(id)).
		Update("used_bytes", used)
	if result.Error != nil {
		return fmt.Errorf("failed to set used bytes: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewError(metadata.ErrNotFound, "user not found", string(id))
	}
	return nil
}

// Healthcheck verifies the database connection is alive.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
