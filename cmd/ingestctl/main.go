// Command ingestctl runs ingestion jobs once, imports the static GTFS
// schedule and prints the store schema.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tcl-live/backend/internal/config"
	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "ingestctl",
	Short: "Operate the TCL ingestion pipeline by hand",
	Long: `ingestctl runs named ingestion jobs once against the configured store,
imports the static GTFS schedule used for next passages, and prints the schema.
Configuration is read from .env, CONFIG_FILE and the environment, as for the poller.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every store-touching command needs
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *db.DB
}

func (e *env) Close() error {
	return e.db.Close()
}

// openEnv loads configuration, builds the logger and opens the store with
// its schema in place
func openEnv(ctx context.Context) (*env, error) {
	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	database, err := db.Open(ctx, db.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		logging.SafeClose(database, logger, "close database")
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: database}, nil
}
