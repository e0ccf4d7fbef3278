// Package cli holds the tribes command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/arnold/tribes-api/internal/config"
	"github.com/arnold/tribes-api/internal/logging"
)

// Version information, set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tribes",
		Short: "Goal accountability API",
		Long: `Serves the goal, tribe, check-in and reaction API.

Configuration is read from defaults, an optional YAML file, a .env file and
the environment, in that order.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides CONFIG_PATH)")

	load := func() (*config.Config, error) {
		if configPath != "" {
			if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
				return nil, err
			}
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if err := logging.Init(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(newServeCommand(load))
	root.AddCommand(newMigrateCommand(load))
	root.AddCommand(newVersionCommand())
	return root
}
