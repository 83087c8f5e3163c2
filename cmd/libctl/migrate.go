package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	mongoMigration "bookshelf/internal/migrations/mongo"
)

func newMigrateCmd(e *env) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, schema validators and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg := e.connect()
			if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
				return err
			}
			cmd.Println("Migration completed successfully.")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall migration deadline")
	return cmd
}
