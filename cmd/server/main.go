// Package main implements the entry point for the LabelHive API server,
// which coordinates crowd-sourced image labelling: jobs are split into
// batches, labellers claim and complete them, and authors aggregate the
// submitted labels.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/labelhive-api/internal/config"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a database migration command (up, down, status, reset, version) and exit")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before configuration")
	flag.Parse()

	if err := run(*migrateCmd, *envFile); err != nil {
		log.Fatalf("labelhive-api: %v", err)
	}
}

func run(migrateCmd, envFile string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"batch_size", cfg.Batch.Size,
		"claim_ttl", cfg.Batch.ClaimTTL().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		defer closeDB(db, l)
		if !postgres.IsMigrationCommand(migrateCmd) {
			return fmt.Errorf("unknown migration command %q", migrateCmd)
		}
		return postgres.Migrate(ctx, db, migrateCmd, l)
	}

	app, err := newApplication(cfg, l, db)
	if err != nil {
		closeDB(db, l)
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// loadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}
