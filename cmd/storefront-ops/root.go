package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the operations CLI.
func NewRootCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storefront-ops",
		Short:         "Operational helpers for the storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().Bool("json", false, "print machine readable output")

	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewJobsCmd(deps))
	return cmd
}

func jsonOutput(cmd *cobra.Command) bool {
	enabled, _ := cmd.Flags().GetBool("json")
	return enabled
}
