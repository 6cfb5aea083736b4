package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/models"
	"github.com/tcl-live/backend/internal/normalize"
)

// maxNextPassages bounds the next-passages list
const maxNextPassages = 10

// calendarColumns maps time.Weekday onto gtfs_calendar day columns
var calendarColumns = [...]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

// StopRepository serves stops and their next scheduled passages
type StopRepository struct {
	db  *db.DB
	loc *time.Location
	now func() time.Time
}

// NewStopRepository creates a StopRepository. Schedules are evaluated in loc.
func NewStopRepository(database *db.DB, loc *time.Location) *StopRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &StopRepository{db: database, loc: loc, now: time.Now}
}

const stopColumns = `id, name, longitude, latitude, pmr_accessible, service_info,
	has_elevator, has_escalator, address, municipality, zone, gtfs_stop_id`

func scanStop(s interface{ Scan(...any) error }) (models.Stop, error) {
	var stop models.Stop
	err := s.Scan(
		&stop.ID,
		&stop.Name,
		&stop.Longitude,
		&stop.Latitude,
		&stop.PMRAccessible,
		&stop.ServiceInfo,
		&stop.HasElevator,
		&stop.HasEscalator,
		&stop.Address,
		&stop.Municipality,
		&stop.Zone,
		&stop.GTFSStopID,
	)
	return stop, err
}

// List returns stops ordered by name
func (r *StopRepository) List(ctx context.Context, page Page) ([]models.Stop, error) {
	suffix, args := page.clause(r.db.Dialect())
	query := `SELECT ` + stopColumns + ` FROM stops ORDER BY name IS NULL, name, id` + suffix

	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	stops := make([]models.Stop, 0)
	for rows.Next() {
		stop, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stop row: %w", err)
		}
		stops = append(stops, stop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop rows: %w", err)
	}
	return stops, nil
}

// Count returns the number of stops
func (r *StopRepository) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, "stops", `SELECT COUNT(*) FROM stops`)
}

// GetByID returns one stop or ErrNotFound
func (r *StopRepository) GetByID(ctx context.Context, id string) (*models.Stop, error) {
	if id == "" {
		return nil, errors.New("stop id cannot be empty")
	}
	row := r.db.Conn().QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+stopColumns+` FROM stops WHERE id = ?`), id)
	stop, err := scanStop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stop %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stop %s: %w", id, err)
	}
	return &stop, nil
}

// scheduledPassage is one row of the schedule join
type scheduledPassage struct {
	arrivalTime    string
	lineName       *string
	headsign       *string
	directionID    *int
	routeColor     *string
	routeTextColor *string
}

type passageKey struct {
	arrival, line, headsign string
}

// NextPassages returns up to ten upcoming (time, line, headsign) passages
// at a stop, from the static schedule of services active today, each with
// the latest live delay known for its line. A stop without a GTFS id has no
// passages.
func (r *StopRepository) NextPassages(ctx context.Context, stopID string) ([]models.NextPassage, error) {
	stop, err := r.GetByID(ctx, stopID)
	if err != nil {
		return nil, err
	}
	passages := make([]models.NextPassage, 0, maxNextPassages)
	if stop.GTFSStopID == nil {
		return passages, nil
	}

	now := r.now().In(r.loc)
	scheduled, err := r.scheduledPassages(ctx, *stop.GTFSStopID, now)
	if err != nil {
		return nil, err
	}
	if len(scheduled) == 0 {
		return passages, nil
	}

	wanted := make(map[string]bool)
	for _, p := range scheduled {
		if p.lineName != nil {
			wanted[*p.lineName] = true
		}
	}
	delays, err := r.latestDelays(ctx, wanted)
	if err != nil {
		return nil, err
	}

	for _, p := range scheduled {
		direction := models.DirectionInbound
		if p.directionID != nil && *p.directionID == 0 {
			direction = models.DirectionOutbound
		}
		delay := models.DefaultDelay
		if p.lineName != nil {
			if d, ok := delays[*p.lineName]; ok {
				delay = d
			}
		}
		passages = append(passages, models.NextPassage{
			DirectionRef:         direction,
			DestinationName:      p.headsign,
			Delay:                delay,
			StopPointName:        stop.Name,
			PublishedLineName:    p.lineName,
			LineDestination:      p.headsign,
			ScheduledArrivalTime: p.arrivalTime,
			RouteColor:           p.routeColor,
			RouteTextColor:       p.routeTextColor,
		})
	}
	return passages, nil
}

// scheduledPassages joins the stop's stop_times with the services active on
// now's date: calendar weekday flag within [start_date, end_date], plus
// calendar_dates additions, minus calendar_dates removals.
func (r *StopRepository) scheduledPassages(ctx context.Context, gtfsStopID string, now time.Time) ([]scheduledPassage, error) {
	today := now.Format("20060102")
	secondsNow := now.Hour()*3600 + now.Minute()*60 + now.Second()
	day := calendarColumns[now.Weekday()]

	query := `
		SELECT st.arrival_time, r.route_short_name, t.trip_headsign, t.direction_id,
			r.route_color, r.route_text_color
		FROM gtfs_stop_times st
		JOIN gtfs_trips t ON t.trip_id = st.trip_id
		JOIN gtfs_routes r ON r.route_id = t.route_id
		WHERE st.stop_id = ?
			AND st.arrival_seconds >= ?
			AND t.service_id IN (
				SELECT service_id FROM gtfs_calendar
				WHERE ` + day + ` = 1 AND start_date <= ? AND end_date >= ?
				UNION
				SELECT service_id FROM gtfs_calendar_dates
				WHERE date = ? AND exception_type = 1
			)
			AND t.service_id NOT IN (
				SELECT service_id FROM gtfs_calendar_dates
				WHERE date = ? AND exception_type = 2
			)
		ORDER BY st.arrival_seconds, r.route_short_name, t.trip_headsign
	`
	rows, err := r.db.Conn().QueryContext(ctx, r.db.Rebind(query),
		gtfsStopID, secondsNow, today, today, today, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled passages: %w", err)
	}
	defer rows.Close()

	seen := make(map[passageKey]bool)
	var passages []scheduledPassage
	for rows.Next() && len(passages) < maxNextPassages {
		var p scheduledPassage
		var arrival sql.NullString
		if err := rows.Scan(&arrival, &p.lineName, &p.headsign, &p.directionID, &p.routeColor, &p.routeTextColor); err != nil {
			return nil, fmt.Errorf("failed to scan passage row: %w", err)
		}
		p.arrivalTime = arrival.String

		key := passageKey{arrival: p.arrivalTime, line: deref(p.lineName), headsign: deref(p.headsign)}
		if seen[key] {
			continue
		}
		seen[key] = true
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating passage rows: %w", err)
	}
	return passages, nil
}

// latestDelays returns, for every wanted sort code, the delay of the most
// recently recorded vehicle on that line
func (r *StopRepository) latestDelays(ctx context.Context, wanted map[string]bool) (map[string]string, error) {
	delays := make(map[string]string)
	if len(wanted) == 0 {
		return delays, nil
	}

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT line_ref, delay
		FROM vehicle_positions
		WHERE delay IS NOT NULL AND line_ref IS NOT NULL
		ORDER BY recorded_at_time IS NULL, recorded_at_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle delays: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lineRef, delay string
		if err := rows.Scan(&lineRef, &delay); err != nil {
			return nil, fmt.Errorf("failed to scan delay row: %w", err)
		}
		code := normalize.LineSortCode(lineRef)
		if !wanted[code] {
			continue
		}
		if _, ok := delays[code]; !ok {
			delays[code] = delay
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delay rows: %w", err)
	}
	return delays, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
