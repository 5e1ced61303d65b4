package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbus/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with defaults.

By default the file is created at $XDG_CONFIG_HOME/nimbus/config.yaml.
Use --config to choose another path. Existing files are never overwritten.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("Edit it to customize your setup, then run: nimbus serve")
	return nil
}
