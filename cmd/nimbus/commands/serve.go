package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbus/internal/logger"
	"github.com/nimbusfs/nimbus/pkg/api"
	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/gc"
	"github.com/nimbusfs/nimbus/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nimbus server",
	Long: `Start the Nimbus HTTP server with the configured stores.

Use --config to specify a configuration file, or it will use the default
location at $XDG_CONFIG_HOME/nimbus/config.yaml. Every setting can also
be overridden through NIMBUS_* environment variables, for example:

  NIMBUS_LOGGING_LEVEL=DEBUG nimbus serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	d := drive.New(cfg.Drive, stores.entries, stores.blobs, stores.users,
		drive.WithMetrics(metrics.NewDriveMetrics()))

	collector := gc.NewCollector(stores.entries, stores.blobs, cfg.GC)
	collector.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := collector.Stop(stopCtx); err != nil {
			logger.Warn("Blob collector did not stop cleanly: %v", err)
		}
	}()

	router := api.NewRouter(api.Dependencies{
		Drive:   d,
		Entries: stores.entries,
		Blobs:   stores.blobs,
		Users:   stores.users,
	}, cfg.Server.RequestTimeout)

	server := api.NewServer(cfg.Server.ListenAddr, router, cfg.Server.ShutdownTimeout)
	return server.Start(ctx)
}
