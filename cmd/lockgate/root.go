package main

import (
	"errors"
	"io/fs"
	"log/slog"
)

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
	"github.com/nanjiek/lockgate/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "lockgate",
		Short:         "Love lock albums behind an admission gate",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; a missing file is not an error
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/lockgate.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newTokenCmd(opts))
	return cmd
}

// load reads the config and installs the configured logger as default.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
