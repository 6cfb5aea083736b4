package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tcl-live/backend/internal/gtfsrt"
	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/repository"
)

// VehicleRepository defines the live vehicle read operations
type VehicleRepository interface {
	List(ctx context.Context, filter repository.VehicleFilter) ([]models.Vehicle, error)
}

// VehicleHandler handles HTTP requests for live vehicle positions
type VehicleHandler struct {
	repo   VehicleRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewVehicleHandler creates a new handler with the given repository
func NewVehicleHandler(repo VehicleRepository, logger *slog.Logger) *VehicleHandler {
	return &VehicleHandler{repo: repo, logger: logger, now: time.Now}
}

// GetVehicles handles GET /api/vehicles
// Optional filters: line_sort_code, direction (Aller/outbound, Retour/inbound)
func (h *VehicleHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	filter := repository.VehicleFilter{
		LineSortCode: r.URL.Query().Get("line_sort_code"),
		Direction:    r.URL.Query().Get("direction"),
	}

	vehicles, err := h.repo.List(r.Context(), filter)
	if errors.Is(err, repository.ErrInvalidFilter) {
		writeError(w, http.StatusBadRequest, "Invalid direction", map[string]interface{}{
			"direction": filter.Direction,
			"accepted":  []string{"Aller", "Retour", models.DirectionOutbound, models.DirectionInbound},
		})
		return
	}
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve vehicles", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=2")
	writeJSON(w, http.StatusOK, vehicles)
}

// GetVehiclePositionsFeed handles GET /api/gtfs-rt/vehicle-positions.pb
// Returns the fleet snapshot as a GTFS-realtime protobuf feed
func (h *VehicleHandler) GetVehiclePositionsFeed(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.repo.List(r.Context(), repository.VehicleFilter{})
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve vehicles", err)
		return
	}

	b, err := gtfsrt.Marshal(gtfsrt.VehicleFeed(vehicles, h.now()))
	if err != nil {
		writeInternal(w, h.logger, "Failed to encode feed", err)
		return
	}

	w.Header().Set("Content-Type", gtfsrt.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
