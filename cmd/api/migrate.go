package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending embedded migrations against DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cmd.Println("Connecting to database...")
			db, err := database.Connect(ctx, database.ConfigFromEnv())
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer db.Close()

			if status {
				if err := database.MigrationStatus(ctx, db.DB); err != nil {
					return oops.Code("MIGRATION_STATUS_FAILED").With("operation", "migration status").Wrap(err)
				}
				return nil
			}
			cmd.Println("Running migrations...")
			if err := database.Migrate(ctx, db.DB); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print migration status instead of applying")
	return cmd
}
