package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/repository"
)

// StopRepository defines the stop read operations
type StopRepository interface {
	List(ctx context.Context, page repository.Page) ([]models.Stop, error)
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id string) (*models.Stop, error)
	NextPassages(ctx context.Context, stopID string) ([]models.NextPassage, error)
}

// StopHandler handles HTTP requests for stops
type StopHandler struct {
	repo   StopRepository
	logger *slog.Logger
}

// NewStopHandler creates a new handler with the given repository
func NewStopHandler(repo StopRepository, logger *slog.Logger) *StopHandler {
	return &StopHandler{repo: repo, logger: logger}
}

// GetStops handles GET /api/stops
// Returns the bare array, or the pagination envelope when limit or offset is given
func (h *StopHandler) GetStops(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers", nil)
		return
	}

	stops, err := h.repo.List(ctx, page)
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve stops", err)
		return
	}
	if !page.Paginated() {
		writeJSON(w, http.StatusOK, stops)
		return
	}

	total, err := h.repo.Count(ctx)
	if err != nil {
		writeInternal(w, h.logger, "Failed to count stops", err)
		return
	}
	writeJSON(w, http.StatusOK, paginated(stops, page, total))
}

// GetStop handles GET /api/stops/{stopID}
func (h *StopHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopID")

	stop, err := h.repo.GetByID(r.Context(), stopID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": stopID})
		return
	}
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve stop", err)
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// GetNextPassages handles GET /api/stops/{stopID}/next-passages
// Returns up to ten scheduled passages with the live delay of their line
func (h *StopHandler) GetNextPassages(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopID")

	passages, err := h.repo.NextPassages(r.Context(), stopID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Stop not found", map[string]interface{}{"stopId": stopID})
		return
	}
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve next passages", err)
		return
	}

	// schedule-derived, refreshed with the real-time cycle
	w.Header().Set("Cache-Control", "public, max-age=5")
	writeJSON(w, http.StatusOK, passages)
}
