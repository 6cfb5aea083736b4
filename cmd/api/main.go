package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcl-live/backend/internal/config"
	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/handlers"
	"github.com/tcl-live/backend/internal/logging"
	"github.com/tcl-live/backend/internal/repository"
)

func main() {
	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	apiLogger := logging.Component(logger, "api")

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

	// validated by config.Load
	loc, _ := time.LoadLocation(cfg.API.Timezone)

	router := handlers.NewRouter(handlers.RouterOptions{
		Stops:    handlers.NewStopHandler(repository.NewStopRepository(database, loc), apiLogger),
		Alerts:   handlers.NewAlertHandler(repository.NewAlertRepository(database), apiLogger),
		Vehicles: handlers.NewVehicleHandler(repository.NewVehicleRepository(database), apiLogger),
		Reference: handlers.NewReferenceHandler(
			repository.NewLineRepository(database),
			repository.NewStationRepository(database),
			repository.NewLineIconRepository(database),
			cfg.API.CacheTTL,
			apiLogger,
		),
		Health:       handlers.NewHealthHandler(repository.NewHealthRepository(database), apiLogger),
		CORSOrigins:  cfg.API.CORSOrigins,
		RateLimitRPS: cfg.API.RateLimitRPS,
		StaticDir:    cfg.API.StaticDir,
		Logger:       apiLogger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.API.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.LogError(logger, "failed to shut down server", err)
		}
	}()

	logger.Info("API server starting",
		slog.String("addr", server.Addr),
		slog.String("timezone", cfg.API.Timezone),
		slog.Int("rate_limit_rps", cfg.API.RateLimitRPS),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.LogError(logger, "server failed", err)
		os.Exit(1)
	}
	logger.Info("API server stopped")
}
