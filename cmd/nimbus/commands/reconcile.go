package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbus/pkg/drive"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [username...]",
	Short: "Recompute quota usage counters",
	Long: `Recompute each user's usage counter from their stored entries and
overwrite the running total.

The counter can drift when a release after a failed write did not go
through. With no arguments every user is reconciled.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
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

	var accounts []*users.User
	if len(args) == 0 {
		accounts, err = stores.users.ListUsers(ctx)
		if err != nil {
			return err
		}
	} else {
		for _, username := range args {
			user, err := stores.users.GetUserByUsername(ctx, username)
			if err != nil {
				return err
			}
			accounts = append(accounts, user)
		}
	}

	for _, user := range accounts {
		total, drift, err := d.Ledger().Reconcile(ctx, user.UserID())
		if err != nil {
			return fmt.Errorf("failed to reconcile %s: %w", user.Username, err)
		}
		if drift == 0 {
			fmt.Printf("%s: %d bytes, no drift\n", user.Username, total)
		} else {
			fmt.Printf("%s: %d bytes, corrected drift of %+d bytes\n", user.Username, total, drift)
		}
	}
	return nil
}
