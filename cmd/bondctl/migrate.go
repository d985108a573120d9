package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/storage"
)

type migrateCmd struct {
	action string
	path   string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply, roll back or inspect Postgres migrations" }
func (*migrateCmd) Usage() string {
	return `migrate [-action up|down|version] [-path <dir>]

  Runs the Postgres schema migrations:
  - up: apply every pending migration (default).
  - down: roll back the most recent migration.
  - version: print the current version and whether it is dirty.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.action, "action", "up", "Migration action: up, down, version")
	f.StringVar(&c.path, "path", "", "Migrations directory (defaults to the configured path)")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := configFrom(args)
	databaseURL := cfg.Database.Postgres.PostgresURL()
	migrationsPath := c.path
	if migrationsPath == "" {
		migrationsPath = cfg.Database.Postgres.MigrationsPath
	}

	switch c.action {
	case "up":
		logging.Info("Running Postgres migrations...")
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		logging.Info("Postgres migrations completed successfully")

	case "down":
		logging.Info("Rolling back Postgres migration...")
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		logging.Info("Postgres migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("version %d (dirty: %v)\n", version, dirty)

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown action %q\n", c.action)
		return subcommands.ExitUsageError
	}

	return subcommands.ExitSuccess
}
