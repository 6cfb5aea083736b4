package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/normalize"
)

// VehicleFilter narrows the live vehicle list. Empty fields do not filter.
type VehicleFilter struct {
	LineSortCode string
	// Direction accepts "Aller"/"outbound" or "Retour"/"inbound"
	Direction string
}

// direction maps the accepted vocabulary onto the stored direction_ref
func (f VehicleFilter) direction() (string, error) {
	switch strings.ToLower(f.Direction) {
	case "":
		return "", nil
	case "aller", models.DirectionOutbound:
		return models.DirectionOutbound, nil
	case "retour", models.DirectionInbound:
		return models.DirectionInbound, nil
	}
	return "", fmt.Errorf("direction %q: %w", f.Direction, ErrInvalidFilter)
}

// VehicleRepository serves the current vehicle position snapshot
type VehicleRepository struct {
	db *db.DB
}

// NewVehicleRepository creates a new VehicleRepository
func NewVehicleRepository(database *db.DB) *VehicleRepository {
	return &VehicleRepository{db: database}
}

// List returns vehicles matching the filter, ordered by vehicle ref
func (r *VehicleRepository) List(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error) {
	direction, err := filter.direction()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT vehicle_ref, longitude, latitude, bearing, delay, published_line_name,
			destination_name, line_ref, direction_ref, stop_point_name,
			expected_arrival_time, distance_from_stop
		FROM vehicle_positions
		WHERE 1 = 1`
	var args []any
	if filter.LineSortCode != "" {
		// narrows the scan; LineSortCode below is authoritative
		query += ` AND line_ref LIKE ?`
		args = append(args, "%::"+filter.LineSortCode+":%")
	}
	if direction != "" {
		query += ` AND direction_ref = ?`
		args = append(args, direction)
	}
	query += ` ORDER BY vehicle_ref`

	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := make([]models.Vehicle, 0)
	for rows.Next() {
		var v models.Vehicle
		err := rows.Scan(
			&v.VehicleRef,
			&v.Longitude,
			&v.Latitude,
			&v.Bearing,
			&v.Delay,
			&v.PublishedLineName,
			&v.DestinationName,
			&v.LineRef,
			&v.DirectionRef,
			&v.StopPointName,
			&v.ExpectedArrivalTime,
			&v.DistanceFromStop,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle row: %w", err)
		}
		if filter.LineSortCode != "" && (v.LineRef == nil || normalize.LineSortCode(*v.LineRef) != filter.LineSortCode) {
			continue
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicle rows: %w", err)
	}
	return vehicles, nil
}
