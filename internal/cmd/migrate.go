package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/migrations"
)

func MigrateCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Args:  cobra.ExactArgs(0),
		Short: "Creates or updates the database schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := cmdutil.NewLogger(cfg, false)
			defer func() { _ = logger.Sync() }()

			db, err := cmdutil.NewDatabasePool(ctx, cfg, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Apply(ctx, db)
			if err != nil {
				return err
			}

			logger.Info("applied migrations", zap.Strings("migrations", applied))
			return nil
		},
	}

	return cmd
}
