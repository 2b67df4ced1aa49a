// Command ssoctl is the operator CLI: seeding, credential rotation and
// cleanup of expired single-use records.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"campus-sso/internal/platform/config"
	"campus-sso/internal/platform/logger"
	"campus-sso/internal/platform/postgres"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "ssoctl",
		Short:         "Operator tooling for the campus SSO service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file (skipped if not found)")

	rootCmd.AddCommand(newSeedCmd(&envFile))
	rootCmd.AddCommand(newRotateSecretCmd(&envFile))
	rootCmd.AddCommand(newRotateKeyCmd(&envFile))
	rootCmd.AddCommand(newGCCmd(&envFile))
	rootCmd.AddCommand(newRevokeConsentCmd(&envFile))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("ssoctl failed", "error", err)
		os.Exit(1)
	}
}

// openDB loads configuration and connects. Every command works against
// Postgres; the in-memory stores only live as long as a server process.
func openDB(ctx context.Context, envFile string) (*sql.DB, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level, "text")
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	return db, log, nil
}
