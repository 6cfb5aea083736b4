package db

import (
	"context"
	"database/sql"
	"fmt"
)

// GTFSRoute is a row of gtfs_routes
type GTFSRoute struct {
	RouteID        string
	RouteShortName string
	RouteLongName  string
	RouteColor     string
	RouteTextColor string
	RouteType      int
}

// GTFSTrip is a row of gtfs_trips. DirectionID is nil when unspecified.
type GTFSTrip struct {
	TripID       string
	RouteID      string
	ServiceID    string
	TripHeadsign string
	DirectionID  *int
}

// GTFSStopTime is a row of gtfs_stop_times. Times are GTFS HH:MM:SS and may
// exceed 24:00:00 for trips running past midnight.
type GTFSStopTime struct {
	TripID         string
	StopID         string
	StopSequence   int
	ArrivalTime    string
	DepartureTime  string
	ArrivalSeconds int
}

// GTFSCalendar is a row of gtfs_calendar; dates are YYYYMMDD
type GTFSCalendar struct {
	ServiceID string
	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool
	StartDate string
	EndDate   string
}

// GTFSCalendarDate is a service exception: type 1 adds, type 2 removes
type GTFSCalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType int
}

// GTFSData is a full static schedule snapshot
type GTFSData struct {
	Routes        []GTFSRoute
	Trips         []GTFSTrip
	StopTimes     []GTFSStopTime
	Calendars     []GTFSCalendar
	CalendarDates []GTFSCalendarDate
}

// ReplaceGTFS truncates every gtfs_* table and loads data in one transaction
func (db *DB) ReplaceGTFS(ctx context.Context, data *GTFSData) error {
	return db.withTx(ctx, "replace_gtfs", func(tx *sql.Tx) error {
		for _, table := range []string{
			"gtfs_stop_times", "gtfs_trips", "gtfs_routes", "gtfs_calendar_dates", "gtfs_calendar",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if err := db.insertGTFSRoutes(ctx, tx, data.Routes); err != nil {
			return err
		}
		if err := db.insertGTFSTrips(ctx, tx, data.Trips); err != nil {
			return err
		}
		if err := db.insertGTFSStopTimes(ctx, tx, data.StopTimes); err != nil {
			return err
		}
		return db.insertGTFSCalendars(ctx, tx, data.Calendars, data.CalendarDates)
	})
}

func (db *DB) insertGTFSRoutes(ctx context.Context, tx *sql.Tx, routes []GTFSRoute) error {
	stmt, err := db.prepare(ctx, tx, `
		INSERT INTO gtfs_routes (route_id, route_short_name, route_long_name, route_color, route_text_color, route_type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (route_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare route statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range routes {
		if _, err := stmt.ExecContext(ctx,
			r.RouteID, r.RouteShortName, r.RouteLongName, r.RouteColor, r.RouteTextColor, r.RouteType,
		); err != nil {
			return fmt.Errorf("failed to insert route %s: %w", r.RouteID, err)
		}
	}
	return nil
}

func (db *DB) insertGTFSTrips(ctx context.Context, tx *sql.Tx, trips []GTFSTrip) error {
	stmt, err := db.prepare(ctx, tx, `
		INSERT INTO gtfs_trips (trip_id, route_id, service_id, trip_headsign, direction_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (trip_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trip statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range trips {
		if _, err := stmt.ExecContext(ctx, t.TripID, t.RouteID, t.ServiceID, t.TripHeadsign, t.DirectionID); err != nil {
			return fmt.Errorf("failed to insert trip %s: %w", t.TripID, err)
		}
	}
	return nil
}

func (db *DB) insertGTFSStopTimes(ctx context.Context, tx *sql.Tx, stopTimes []GTFSStopTime) error {
	stmt, err := db.prepare(ctx, tx, `
		INSERT INTO gtfs_stop_times (trip_id, stop_id, stop_sequence, arrival_time, departure_time, arrival_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (trip_id, stop_sequence) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare stop_time statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range stopTimes {
		if _, err := stmt.ExecContext(ctx,
			st.TripID, st.StopID, st.StopSequence, st.ArrivalTime, st.DepartureTime, st.ArrivalSeconds,
		); err != nil {
			return fmt.Errorf("failed to insert stop_time %s/%d: %w", st.TripID, st.StopSequence, err)
		}
	}
	return nil
}

func (db *DB) insertGTFSCalendars(ctx context.Context, tx *sql.Tx, calendars []GTFSCalendar, dates []GTFSCalendarDate) error {
	calStmt, err := db.prepare(ctx, tx, `
		INSERT INTO gtfs_calendar (
			service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (service_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare calendar statement: %w", err)
	}
	defer calStmt.Close()

	for _, c := range calendars {
		if _, err := calStmt.ExecContext(ctx, c.ServiceID,
			boolToInt(c.Monday), boolToInt(c.Tuesday), boolToInt(c.Wednesday), boolToInt(c.Thursday),
			boolToInt(c.Friday), boolToInt(c.Saturday), boolToInt(c.Sunday),
			c.StartDate, c.EndDate,
		); err != nil {
			return fmt.Errorf("failed to insert calendar %s: %w", c.ServiceID, err)
		}
	}

	dateStmt, err := db.prepare(ctx, tx, `
		INSERT INTO gtfs_calendar_dates (service_id, date, exception_type)
		VALUES (?, ?, ?)
		ON CONFLICT (service_id, date) DO UPDATE SET exception_type = excluded.exception_type
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare calendar_dates statement: %w", err)
	}
	defer dateStmt.Close()

	for _, d := range dates {
		if _, err := dateStmt.ExecContext(ctx, d.ServiceID, d.Date, d.ExceptionType); err != nil {
			return fmt.Errorf("failed to insert calendar_date %s/%s: %w", d.ServiceID, d.Date, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
