package main

import (
	"github.com/spf13/cobra"

	"github.com/winhacks/hackbot/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, logger); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}
