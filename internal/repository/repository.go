// Package repository holds the read-side queries the API serves. They reshape
// normalized rows for presentation and never depend on ingestion timing.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tcl-live/backend/internal/db"
)

// ErrNotFound is returned when a keyed lookup matches no row
var ErrNotFound = errors.New("not found")

// ErrInvalidFilter is returned for filter values outside their vocabulary
var ErrInvalidFilter = errors.New("invalid filter")

// Page selects a window of a list. Nil fields mean "not given".
type Page struct {
	Limit  *int
	Offset *int
}

// Paginated reports whether the caller asked for a window
func (p Page) Paginated() bool {
	return p.Limit != nil || p.Offset != nil
}

// clause returns the LIMIT/OFFSET suffix and its arguments
func (p Page) clause(dialect string) (string, []any) {
	switch {
	case p.Limit != nil && p.Offset != nil:
		return " LIMIT ? OFFSET ?", []any{*p.Limit, *p.Offset}
	case p.Limit != nil:
		return " LIMIT ?", []any{*p.Limit}
	case p.Offset != nil:
		// SQLite has no OFFSET without LIMIT
		if dialect == db.DialectSQLite {
			return " LIMIT -1 OFFSET ?", []any{*p.Offset}
		}
		return " OFFSET ?", []any{*p.Offset}
	}
	return "", nil
}

// window applies the page to an in-memory slice
func window[T any](items []T, p Page) []T {
	if p.Offset != nil {
		if *p.Offset >= len(items) {
			return items[:0]
		}
		if *p.Offset > 0 {
			items = items[*p.Offset:]
		}
	}
	if p.Limit != nil && *p.Limit >= 0 && *p.Limit < len(items) {
		items = items[:*p.Limit]
	}
	return items
}

// countRows runs a single-value COUNT query
func countRows(ctx context.Context, database *db.DB, what, query string, args ...any) (int, error) {
	var n int
	if err := database.Conn().QueryRowContext(ctx, database.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", what, err)
	}
	return n, nil
}

// parseRunTime reads an ingestion_runs timestamp
func parseRunTime(s string) time.Time {
	t, err := time.Parse(db.RunTimeLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return time.Time{}
		}
	}
	return t
}
