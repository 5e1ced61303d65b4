package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GenerateYAML renders a configuration as a YAML document suitable for a
// config file.
//
// Keys match the mapstructure names used by Load, so the generated file
// round-trips through the loader unchanged.
func GenerateYAML(cfg *Config) ([]byte, error) {
	doc := map[string]any{
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"output": cfg.Logging.Output,
		},
		"server": map[string]any{
			"listen_addr":      cfg.Server.ListenAddr,
			"request_timeout":  cfg.Server.RequestTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
		},
		"drive": map[string]any{
			"inline_threshold": cfg.Drive.InlineThreshold,
		},
		"metadata": map[string]any{
			"type":   cfg.Metadata.Type,
			"badger": cfg.Metadata.Badger,
		},
		"blob": map[string]any{
			"type":       cfg.Blob.Type,
			"filesystem": cfg.Blob.Filesystem,
			"s3":         cfg.Blob.S3,
		},
		"users": map[string]any{
			"type": string(cfg.Users.Type),
			"sqlite": map[string]any{
				"path": cfg.Users.SQLite.Path,
			},
		},
		"gc": map[string]any{
			"enabled":  cfg.GC.Enabled,
			"interval": cfg.GC.Interval.String(),
			"dry_run":  cfg.GC.DryRun,
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
		},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return out, nil
}

// WriteDefaultConfig writes a default configuration file to the given
// path, creating parent directories as needed.
//
// Returns an error if a file already exists at the path.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := GenerateYAML(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
