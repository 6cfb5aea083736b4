package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tcl-live/backend/internal/models"
)

// HealthRepository defines the health check operations
type HealthRepository interface {
	Ping(ctx context.Context) error
	LastRuns(ctx context.Context) ([]models.JobStatus, error)
}

// HealthHandler handles GET /health
type HealthHandler struct {
	repo   HealthRepository
	logger *slog.Logger
}

// NewHealthHandler creates a new handler with the given repository
func NewHealthHandler(repo HealthRepository, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{repo: repo, logger: logger}
}

// GetHealth handles GET /health
// Reports database connectivity and the latest run of every ingestion job
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, models.Health{
			Status:    "error",
			Database:  "disconnected",
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})
		return
	}

	health := models.Health{
		Status:    "ok",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	}
	// job history is informational; a failure here does not fail the check
	runs, err := h.repo.LastRuns(ctx)
	if err != nil {
		h.logger.Warn("failed to load ingestion runs", slog.String("error", err.Error()))
	} else {
		health.Jobs = runs
	}
	writeJSON(w, http.StatusOK, health)
}
