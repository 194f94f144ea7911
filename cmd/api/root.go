package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the auth service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service-auth",
		Short: "Account signup, login and password reset API",
		Long: `service-auth serves signup, login, forgot-password and reset-password
endpoints over PostgreSQL, Redis or in-memory stores.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}
