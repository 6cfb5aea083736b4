package repository

import (
	"context"
	"fmt"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/models"
)

// LineFilter narrows the line list
type LineFilter struct {
	Category string
	// DistinctSortCode keeps one row per line sort code, for line pickers
	DistinctSortCode bool
}

// LineRepository serves line traces
type LineRepository struct {
	db *db.DB
}

// NewLineRepository creates a new LineRepository
func NewLineRepository(database *db.DB) *LineRepository {
	return &LineRepository{db: database}
}

// List returns lines ordered by sort code then id. In distinct mode the first
// row of each sort code wins; rows without a sort code are always kept.
func (r *LineRepository) List(ctx context.Context, filter LineFilter) ([]models.Line, error) {
	query := `
		SELECT id, line_name, trace_code, category, color, line_sort_code,
			destination_name, direction, line_type_name
		FROM lines`
	var args []any
	if filter.Category != "" {
		query += ` WHERE category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY line_sort_code IS NULL, line_sort_code, id`

	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	lines := make([]models.Line, 0)
	for rows.Next() {
		var l models.Line
		err := rows.Scan(
			&l.ID,
			&l.LineName,
			&l.TraceCode,
			&l.Category,
			&l.Color,
			&l.LineSortCode,
			&l.DestinationName,
			&l.Direction,
			&l.LineTypeName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line row: %w", err)
		}
		l.LineCode = l.LineSortCode

		if filter.DistinctSortCode && l.LineSortCode != nil {
			if seen[*l.LineSortCode] {
				continue
			}
			seen[*l.LineSortCode] = true
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line rows: %w", err)
	}
	return lines, nil
}

// StationRepository serves metro/tram stations
type StationRepository struct {
	db *db.DB
}

// NewStationRepository creates a new StationRepository
func NewStationRepository(database *db.DB) *StationRepository {
	return &StationRepository{db: database}
}

// List returns every station ordered by name
func (r *StationRepository) List(ctx context.Context) ([]models.Station, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, station_api_id, name, service_info, last_update, longitude, latitude, station_id
		FROM stations
		ORDER BY name IS NULL, name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.ID, &s.StationAPIID, &s.Name, &s.ServiceInfo, &s.LastUpdate,
			&s.Longitude, &s.Latitude, &s.StationID); err != nil {
			return nil, fmt.Errorf("failed to scan station row: %w", err)
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating station rows: %w", err)
	}
	return stations, nil
}

// LineIconRepository serves the line code to pictogram mapping
type LineIconRepository struct {
	db *db.DB
}

// NewLineIconRepository creates a new LineIconRepository
func NewLineIconRepository(database *db.DB) *LineIconRepository {
	return &LineIconRepository{db: database}
}

// List returns every icon mapping ordered by line code
func (r *LineIconRepository) List(ctx context.Context) ([]models.LineIcon, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT code_ligne, COALESCE(picto_mode, ''), COALESCE(picto_ligne, '')
		FROM line_icon_mapping
		ORDER BY code_ligne
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query line icons: %w", err)
	}
	defer rows.Close()

	icons := make([]models.LineIcon, 0)
	for rows.Next() {
		var icon models.LineIcon
		if err := rows.Scan(&icon.LineCode, &icon.Mode, &icon.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan line icon row: %w", err)
		}
		icons = append(icons, icon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line icon rows: %w", err)
	}
	return icons, nil
}
