package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/forgemaster-mtg/mtglibrary/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the deck library schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrations(func(cmd *cobra.Command, mm *storage.MigrationManager, _ []string) error {
		if err := mm.Up(); err != nil {
			return err
		}
		return printVersion(cmd, mm)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (all, or the given number of steps)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withMigrations(func(cmd *cobra.Command, mm *storage.MigrationManager, args []string) error {
		if len(args) == 0 {
			if err := mm.Down(); err != nil {
				return err
			}
			return printVersion(cmd, mm)
		}

		steps, err := strconv.Atoi(args[0])
		if err != nil || steps < 1 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		if err := mm.Steps(-steps); err != nil {
			return err
		}
		return printVersion(cmd, mm)
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: withMigrations(func(cmd *cobra.Command, mm *storage.MigrationManager, _ []string) error {
		return printVersion(cmd, mm)
	}),
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations, clearing the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrations(func(cmd *cobra.Command, mm *storage.MigrationManager, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		if err := mm.Force(version); err != nil {
			return err
		}
		return printVersion(cmd, mm)
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateForceCmd)
}

// withMigrations opens a migration manager on the configured database for
// the duration of fn.
func withMigrations(fn func(*cobra.Command, *storage.MigrationManager, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path, err := cfg.DatabasePath()
		if err != nil {
			return err
		}

		mm, err := storage.NewMigrationManager(path)
		if err != nil {
			return err
		}
		defer func() { _ = mm.Close() }()

		return fn(cmd, mm, args)
	}
}

func printVersion(cmd *cobra.Command, mm *storage.MigrationManager) error {
	version, dirty, err := mm.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}
