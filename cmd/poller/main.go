package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tcl-live/backend/internal/config"
	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/grandlyon"
	"github.com/tcl-live/backend/internal/gtfsstatic"
	"github.com/tcl-live/backend/internal/ingest"
	"github.com/tcl-live/backend/internal/logging"
)

func main() {
	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	logger.Info("starting poller",
		slog.Duration("static_interval", cfg.Ingest.StaticInterval),
		slog.Duration("realtime_interval", cfg.Ingest.RealtimeInterval),
		slog.Duration("gtfs_max_age", cfg.GTFS.MaxAge),
		slog.String("db_driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, db.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger,
	})
	if err != nil {
		logging.LogError(logger, "failed to open database", err)
		os.Exit(1)
	}
	defer logging.SafeClose(database, logger, "close database")

	if err := database.EnsureSchema(ctx); err != nil {
		logging.LogError(logger, "failed to ensure database schema", err)
		os.Exit(1)
	}

	client := grandlyon.NewClient(grandlyon.Options{
		Token:                  cfg.Feed.Token,
		Timeout:                cfg.Feed.Timeout,
		MaxRetries:             cfg.Feed.MaxRetries,
		VehicleMonitoringURL:   cfg.Feed.VehicleMonitoringURL,
		EstimatedTimetablesURL: cfg.Feed.EstimatedTimetablesURL,
		AlertsURL:              cfg.Feed.AlertsURL,
		WFSURL:                 cfg.Feed.WFSURL,
		Logger:                 logger,
	})

	// without a GTFS URL the schedule tables are left to ingestctl import-gtfs
	var schedule ingest.ScheduleLoader
	if cfg.GTFS.URL != "" {
		schedule = &gtfsstatic.Loader{
			Client: &http.Client{Timeout: cfg.GTFS.Timeout},
			Source: cfg.GTFS.URL,
			Logger: logger,
		}
	}

	ingester := ingest.NewIngester(ingest.Options{
		Feed:         client,
		Store:        database,
		IconsCSVPath: cfg.Ingest.IconsCSVPath,
		Schedule:     schedule,
		Logger:       logger,
	})
	scheduler := ingest.NewScheduler(ingester, ingest.SchedulerOptions{
		StaticInterval:   cfg.Ingest.StaticInterval,
		RealtimeInterval: cfg.Ingest.RealtimeInterval,
		RunRetention:     cfg.Ingest.RunRetention,
		GTFSMaxAge:       cfg.GTFS.MaxAge,
		Logger:           logger,
	})

	// Run returns once in-flight jobs have finished
	if err := scheduler.Run(ctx); err != nil {
		logging.LogError(logger, "scheduler stopped", err)
		os.Exit(1)
	}
	logger.Info("poller stopped")
}
