package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/subcommands"

	"finledger/internal/config"
	"finledger/internal/database"
	"finledger/internal/logger"
)

func withMigrator(fn func(m *migrate.Migrate) error) subcommands.ExitStatus {
	log := logger.For("migrate")

	cfg, err := config.Load()
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return subcommands.ExitFailure
	}
	m, err := database.NewMigrator(database.NewConfig(cfg))
	if err != nil {
		log.Errorf("failed to open migrator: %v", err)
		return subcommands.ExitFailure
	}
	defer database.CloseMigrator(m)

	if err := fn(m); err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// parseSteps reads an optional positive step count, defaulting to def.
func parseSteps(args []string, def int) (int, error) {
	switch len(args) {
	case 0:
		return def, nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid step count %q", args[0])
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected at most one step count, got %d arguments", len(args))
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

type upCmd struct{}

func (*upCmd) Name() string           { return "up" }
func (*upCmd) Synopsis() string       { return "apply pending migrations" }
func (*upCmd) Usage() string          { return "up [N]:\n  Apply all pending migrations, or only the next N.\n" }
func (*upCmd) SetFlags(*flag.FlagSet) {}

func (*upCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	steps, err := parseSteps(f.Args(), 0)
	if err != nil {
		logger.For("migrate").Error(err)
		return subcommands.ExitUsageError
	}
	return withMigrator(func(m *migrate.Migrate) error {
		if steps == 0 {
			err = m.Up()
		} else {
			err = m.Steps(steps)
		}
		if err := ignoreNoChange(err); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.For("migrate").Info("Migrations applied successfully")
		return nil
	})
}

type downCmd struct {
	all bool
}

func (*downCmd) Name() string     { return "down" }
func (*downCmd) Synopsis() string { return "roll back migrations" }
func (*downCmd) Usage() string {
	return "down [-all] [N]:\n  Roll back the last N migrations (default 1).\n"
}

func (c *downCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Roll back every migration, dropping the ledger schema")
}

func (c *downCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	steps, err := parseSteps(f.Args(), 1)
	if err != nil {
		logger.For("migrate").Error(err)
		return subcommands.ExitUsageError
	}
	return withMigrator(func(m *migrate.Migrate) error {
		if c.all {
			err = m.Down()
		} else {
			err = m.Steps(-steps)
		}
		if err := ignoreNoChange(err); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		if c.all {
			logger.For("migrate").Info("Rolled back all migrations")
		} else {
			logger.For("migrate").Infof("Rolled back %d migration(s)", steps)
		}
		return nil
	})
}

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the current schema version" }
func (*versionCmd) Usage() string          { return "version:\n  Print the applied schema version.\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	return withMigrator(func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.For("migrate").Info("No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.For("migrate").Infow("schema version", "version", version, "dirty", dirty)
		return nil
	})
}

type forceCmd struct{}

func (*forceCmd) Name() string     { return "force" }
func (*forceCmd) Synopsis() string { return "set the schema version without running migrations" }
func (*forceCmd) Usage() string {
	return "force V:\n  Mark version V as applied and clear the dirty flag after a failed migration.\n"
}
func (*forceCmd) SetFlags(*flag.FlagSet) {}

func (*forceCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		logger.For("migrate").Error("force requires exactly one version")
		return subcommands.ExitUsageError
	}
	version, err := strconv.Atoi(f.Arg(0))
	if err != nil || version < -1 {
		logger.For("migrate").Errorf("invalid version %q", f.Arg(0))
		return subcommands.ExitUsageError
	}
	return withMigrator(func(m *migrate.Migrate) error {
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version %d failed: %w", version, err)
		}
		logger.For("migrate").Infof("Forced schema version to %d", version)
		return nil
	})
}
