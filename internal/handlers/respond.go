// Package handlers implements the read-only HTTP API over the repositories.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tcl-live/backend/internal/logging"
	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/repository"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// writeInternal logs err and answers 500
func writeInternal(w http.ResponseWriter, logger *slog.Logger, message string, err error) {
	logging.LogError(logger, message, err)
	writeError(w, http.StatusInternalServerError, message, map[string]interface{}{
		"internal": err.Error(),
	})
}

// errBadQuery marks a malformed query parameter
var errBadQuery = errors.New("bad query parameter")

// parsePage reads the optional limit and offset query parameters
func parsePage(r *http.Request) (repository.Page, error) {
	var page repository.Page
	for name, dst := range map[string]**int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, errBadQuery
		}
		*dst = &n
	}
	return page, nil
}

// paginated wraps items in the pagination envelope. A missing or zero limit
// reports the total; hasMore needs both limit and offset.
func paginated[T any](items []T, page repository.Page, total int) models.Paginated[T] {
	p := models.Pagination{Total: total, Limit: total}
	if page.Limit != nil && *page.Limit > 0 {
		p.Limit = *page.Limit
	}
	if page.Offset != nil {
		p.Offset = *page.Offset
	}
	if page.Limit != nil && page.Offset != nil {
		p.HasMore = *page.Offset+*page.Limit < total
	}
	return models.Paginated[T]{Data: items, Pagination: p}
}
