package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spurhq/spurbot/db"
	"github.com/spurhq/spurbot/internal/config"
)

// runMigrate applies all pending database migrations and exits.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()
	logger.Info("applying database migrations",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName,
	)

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("database schema up to date")
	return nil
}
