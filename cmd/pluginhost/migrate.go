// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/store"
)

// migrator is the part of store.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres storage schema",
		Long: `Apply or roll back the schema used by the postgres storage backend.
The database URL comes from --database-url, storage.database-url in the
config file, or DATABASE_URL.`,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "postgres connection string")

	run := func(fn func(cmd *cobra.Command, args []string, m migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrf("warning: %v\n", closeErr)
				}
			}()
			return fn(cmd, args, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  run(migrateUp),
	})
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  "Roll back every migration, or the last --steps of them. Rolled back tables lose their plugin data.",
		Args:  cobra.NoArgs,
		RunE:  run(migrateDown),
	}
	down.Flags().Int("steps", 0, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE:  run(migrateForce),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE:  run(migrateVersion),
	})

	return cmd
}

func openMigrator(cmd *cobra.Command) (migrator, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Storage.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			Hint("pass --database-url or set DATABASE_URL").
			Errorf("database URL is required")
	}
	m, err := newMigrator(cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return m, nil
}

func migrateUp(cmd *cobra.Command, _ []string, m migrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateDown(cmd *cobra.Command, _ []string, m migrator) error {
	steps, err := cmd.Flags().GetInt("steps")
	if err != nil {
		return oops.Wrap(err)
	}
	switch {
	case steps < 0:
		return oops.Code("CONFIG_INVALID").With("steps", steps).Errorf("--steps must not be negative")
	case steps == 0:
		cmd.Println("Rolling back migrations...")
		err = m.Down()
	default:
		cmd.Printf("Rolling back %d migration(s)...\n", steps)
		err = m.Steps(-steps)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func migrateForce(cmd *cobra.Command, args []string, m migrator) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("version", args[0]).Errorf("version must be a number")
	}
	if err := m.Force(version); err != nil {
		return err
	}
	cmd.Printf("Forced version %d\n", version)
	return nil
}

func migrateVersion(cmd *cobra.Command, _ []string, m migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	name, err := store.MigrationName(v)
	if err != nil {
		return err
	}
	switch {
	case v == 0:
		cmd.Println("No migrations applied")
	case dirty:
		cmd.Printf("Version %d (%s), dirty\n", v, name)
	default:
		cmd.Printf("Version %d (%s)\n", v, name)
	}
	return nil
}
