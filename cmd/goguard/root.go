package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the goguard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goguard",
		Short: "goguard - credential and token service",
		Long: `goguard authenticates staff accounts with bcrypt passwords, enforces
lockout and password policy, and issues RS256 access tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(flagConfig, "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
