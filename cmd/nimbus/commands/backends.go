package commands

import (
	"context"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/config"
	"github.com/nimbusfs/nimbus/pkg/store/blob"
	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// backends bundles the three stores a drive runs on.
type backends struct {
	entries metadata.Store
	blobs   blob.Store
	users   users.Store
}

// loadConfig reads the configuration and applies the logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openBackends creates the configured stores. On error every store opened
// so far is closed.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	entries, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, err
	}

	blobs, err := config.CreateBlobStore(ctx, &cfg.Blob)
	if err != nil {
		_ = entries.Close()
		return nil, err
	}

	userStore, err := config.CreateUserStore(ctx, &cfg.Users)
	if err != nil {
		_ = blobs.Close()
		_ = entries.Close()
		return nil, err
	}

	return &backends{entries: entries, blobs: blobs, users: userStore}, nil
}

func (b *backends) Close() {
	if err := b.users.Close(); err != nil {
		logger.Warn("Failed to close user store: %v", err)
	}
	if err := b.blobs.Close(); err != nil {
		logger.Warn("Failed to close blob store: %v", err)
	}
	if err := b.entries.Close(); err != nil {
		logger.Warn("Failed to close metadata store: %v", err)
	}
}
