package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type migrateStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// NewMigrateCmd creates the migrate subcommand tree.
func NewMigrateCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the accounts schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				if err := m.Up(); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				return printVersion(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				if err := m.Down(); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				return printVersion(cmd, m)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				return printVersion(cmd, m)
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, deps Deps, fn func(SchemaMigrator) error) error {
	m, err := deps.Migrator()
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			cmd.PrintErrln("close migrator:", err)
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m SchemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	if jsonOutput(cmd) {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(migrateStatus{Version: version, Dirty: dirty})
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("schema version %d (%s)\n", version, state)
	return nil
}
