package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bluele/gcache"

	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/repository"
)

// LineRepository defines the line read operations
type LineRepository interface {
	List(ctx context.Context, filter repository.LineFilter) ([]models.Line, error)
}

// StationRepository defines the station read operations
type StationRepository interface {
	List(ctx context.Context) ([]models.Station, error)
}

// LineIconRepository defines the line icon read operations
type LineIconRepository interface {
	List(ctx context.Context) ([]models.LineIcon, error)
}

// referenceCacheSize bounds the number of cached list variants
const referenceCacheSize = 64

// ReferenceHandler serves the slowly changing reference lists. Responses are
// cached for the static ingestion interval.
type ReferenceHandler struct {
	lines    LineRepository
	stations StationRepository
	icons    LineIconRepository
	cache    gcache.Cache // nil when caching is disabled
	maxAge   string
	logger   *slog.Logger
}

// NewReferenceHandler creates a handler; a zero ttl disables caching
func NewReferenceHandler(lines LineRepository, stations StationRepository, icons LineIconRepository, ttl time.Duration, logger *slog.Logger) *ReferenceHandler {
	h := &ReferenceHandler{
		lines:    lines,
		stations: stations,
		icons:    icons,
		maxAge:   "public, max-age=" + strconv.Itoa(int(ttl.Seconds())),
		logger:   logger,
	}
	if ttl > 0 {
		h.cache = gcache.New(referenceCacheSize).LRU().Expiration(ttl).Build()
	}
	return h
}

// cached returns the value under key, loading and storing it on a miss
func cached[T any](c gcache.Cache, key string, load func() (T, error)) (T, error) {
	if c != nil {
		if v, err := c.Get(key); err == nil {
			return v.(T), nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if c != nil {
		c.Set(key, v)
	}
	return v, nil
}

// GetLines handles GET /api/lines
// Optional filters: category, distinct=true (one line per sort code)
func (h *ReferenceHandler) GetLines(w http.ResponseWriter, r *http.Request) {
	filter := repository.LineFilter{Category: r.URL.Query().Get("category")}
	if raw := r.URL.Query().Get("distinct"); raw != "" {
		distinct, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "distinct must be a boolean", nil)
			return
		}
		filter.DistinctSortCode = distinct
	}

	key := "lines:" + filter.Category + ":" + strconv.FormatBool(filter.DistinctSortCode)
	lines, err := cached(h.cache, key, func() ([]models.Line, error) {
		return h.lines.List(r.Context(), filter)
	})
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve lines", err)
		return
	}

	w.Header().Set("Cache-Control", h.maxAge)
	writeJSON(w, http.StatusOK, lines)
}

// GetStations handles GET /api/stations
func (h *ReferenceHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := cached(h.cache, "stations", func() ([]models.Station, error) {
		return h.stations.List(r.Context())
	})
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve stations", err)
		return
	}

	w.Header().Set("Cache-Control", h.maxAge)
	writeJSON(w, http.StatusOK, stations)
}

// GetLineIcons handles GET /api/line-icons
func (h *ReferenceHandler) GetLineIcons(w http.ResponseWriter, r *http.Request) {
	icons, err := cached(h.cache, "line-icons", func() ([]models.LineIcon, error) {
		return h.icons.List(r.Context())
	})
	if err != nil {
		writeInternal(w, h.logger, "Failed to retrieve line icons", err)
		return
	}

	w.Header().Set("Cache-Control", h.maxAge)
	writeJSON(w, http.StatusOK, icons)
}
