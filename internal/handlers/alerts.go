package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/repository"
)

// AlertRepository defines the alert read operations
type AlertRepository interface {
	List(ctx context.Context, page repository.Page) ([]models.Alert, error)
	Count(ctx context.Context) (int, error)
}

// AlertHandler handles HTTP requests for traffic alerts
type AlertHandler struct {
	repo   AlertRepository
	logger *slog.Logger
}

// NewAlertHandler creates a new handler with the given repository
func NewAlertHandler(repo AlertRepository, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{repo: repo, logger: logger}
}

// GetAlerts handles GET /api/alerts
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers", nil)
		return
	}

	alerts, err := h.repo.List(ctx, page)
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve alerts", err)
		return
	}
	if !page.Paginated() {
		writeJSON(w, http.StatusOK, alerts)
		return
	}

	total, err := h.repo.Count(ctx)
	if err != nil {
		writeInternal(w, h.logger, "Failed to count alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, paginated(alerts, page, total))
}
