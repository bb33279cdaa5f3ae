package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates config.toml from the embedded template when it is missing and applies all migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("Created %s\n", configPath)
	}

	if err := r.MigrateUp(ctx, cmd); err != nil {
		return err
	}

	r.writePlain("Next steps:\n")
	r.writePlain("1. Set DATABASE_URL, JWT_SECRET, SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET (or add them to .env)\n")
	r.writePlain("2. Run 'tunegate config check' and then 'tunegate serve'\n")
	return nil
}

// MigrateUp applies every pending migration.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations", "driver", db.Driver())
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Info("migrations complete")
	return nil
}

// MigrateRollback reverts the most recently applied migration.
func (r *Runner) MigrateRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	r.logger.Info("rolled back latest migration")
	return nil
}

// ConfigCheck reports every missing or invalid setting without starting anything.
func (r *Runner) ConfigCheck(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	r.writePlain("configuration ok\n")
	r.writePlain("  listen:     %s\n", config.Server.Addr())
	r.writePlain("  database:   %s\n", config.Database.DriverName())
	r.writePlain("  state:      %s\n", stateStoreName(config.Delegation))
	r.writePlain("  session:    %s\n", config.Session.TTL)
	return nil
}

func (r *Runner) openDatabase(cmd *cli.Command) (*shared.DB, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if config.Database.URL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL", shared.ErrMissingConfig)
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
	return db, nil
}

func stateStoreName(cfg shared.DelegationConfig) string {
	if cfg.RedisURL != "" {
		return "redis"
	}
	return "memory"
}
