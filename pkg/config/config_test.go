package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

func TestLoadDefaults(t *testing.T) {
	// Point the default search path at an empty directory so a developer's
	// real config file cannot leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(drive.DefaultInlineThreshold), cfg.Drive.InlineThreshold)
	assert.Equal(t, "memory", cfg.Metadata.Type)
	assert.Equal(t, "filesystem", cfg.Blob.Type)
	assert.Equal(t, users.DatabaseTypeSQLite, cfg.Users.Type)
	assert.Equal(t, 24*time.Hour, cfg.GC.Interval)
	assert.False(t, cfg.GC.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
logging:
  level: debug
server:
  listen_addr: ":9999"
  request_timeout: 10s
drive:
  inline_threshold: 1024
metadata:
  type: badger
  badger:
    db_path: /tmp/nimbus-meta
blob:
  type: memory
users:
  type: sqlite
  sqlite:
    path: /tmp/nimbus-users.db
gc:
  enabled: true
  interval: 1h
metrics:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Level is normalized to uppercase
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(1024), cfg.Drive.InlineThreshold)
	assert.Equal(t, "badger", cfg.Metadata.Type)
	assert.Equal(t, "/tmp/nimbus-meta", cfg.Metadata.Badger["db_path"])
	assert.Equal(t, "memory", cfg.Blob.Type)
	assert.Equal(t, "/tmp/nimbus-users.db", cfg.Users.SQLite.Path)
	assert.True(t, cfg.GC.Enabled)
	assert.Equal(t, time.Hour, cfg.GC.Interval)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("UnknownMetadataType", func(t *testing.T) {
		path := filepath.Join(dir, "bad-metadata.yaml")
		require.NoError(t, os.WriteFile(path, []byte("metadata:\n  type: etcd\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("UnknownBlobType", func(t *testing.T) {
		path := filepath.Join(dir, "bad-blob.yaml")
		require.NoError(t, os.WriteFile(path, []byte("blob:\n  type: tape\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("S3WithoutBucket", func(t *testing.T) {
		path := filepath.Join(dir, "bad-s3.yaml")
		require.NoError(t, os.WriteFile(path, []byte("blob:\n  type: s3\n  s3:\n    region: us-east-1\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})
}

func TestGenerateYAMLRoundTrip(t *testing.T) {
	data, err := GenerateYAML(GetDefaultConfig())
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	// A second write must not clobber the existing file
	err = WriteDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
