package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbus/pkg/drive"
)

var migrateContentCmd = &cobra.Command{
	Use:   "migrate-content",
	Short: "Move oversized inline payloads to the blob store",
	Long: `Convert inline-stored file payloads that exceed the configured inline
threshold to blob store payloads.

Run this after lowering drive.inline_threshold to relocate existing
content. The server does not need to be stopped; files are migrated one
at a time.`,
	RunE: runMigrateContent,
}

func runMigrateContent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	d := drive.New(cfg.Drive, stores.entries, stores.blobs, stores.users)

	stats, err := d.MigrateInlineToBlob(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Examined %d candidates, migrated %d files (%d bytes)\n",
		stats.Scanned, stats.Migrated, stats.BytesMoved)
	return nil
}
