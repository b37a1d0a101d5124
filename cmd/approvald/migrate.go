package main

import (
	"github.com/payflow/approval-service/internal/store"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and indexes if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := store.NewPostgresRepository(d.pool).EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			d.logger.Info("schema is up to date")
			return nil
		},
	}
}
