package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nivostack/buildhub/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			log := newLogger(cfg.LogLevel)
			pool, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			pool.Close()

			log.Info("migrations applied")

			return nil
		},
	}
}
