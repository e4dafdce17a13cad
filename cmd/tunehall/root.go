package main

import (
	"github.com/spf13/cobra"

	"tunehall/internal/config"
	"tunehall/internal/logging"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "tunehall",
		Short: "Media catalog backend with soft deletes and relationship bookkeeping",
		Long: `tunehall serves the catalog API and runs maintenance passes over the
document store.

Configuration comes from the environment. Use "tunehall [command] --help" for
more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "config/local.env", "Optional .env file loaded before the environment is read")

	load := func() (*config.Config, *logging.Logger, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}), nil
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newSeedCmd(load))
	root.AddCommand(newReconcileCmd(load))
	return root
}

type loader func() (*config.Config, *logging.Logger, error)
