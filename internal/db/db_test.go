package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcl-live/backend/internal/logging"
)

func ptr[T any](v T) *T { return &v }

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	database, err := Open(ctx, Options{
		Driver: DialectSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureSchema(ctx))
	return database
}

func countRows(t *testing.T, database *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, database.Conn().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM stops WHERE id = ? AND zone = ? LIMIT ?"
	assert.Equal(t, q, Rebind(DialectSQLite, q))
	assert.Equal(t, "SELECT * FROM stops WHERE id = $1 AND zone = $2 LIMIT $3", Rebind(DialectPostgres, q))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, database.EnsureSchema(context.Background()))
	assert.Equal(t, DialectSQLite, database.Dialect())
	assert.Contains(t, SchemaSQL(DialectPostgres), "SERIAL PRIMARY KEY")
}

func TestUpsertStopsLastWriteWins(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	first := Stop{
		ID:            "tclarret.123456",
		Name:          ptr("Bellecour"),
		ServiceInfo:   ptr("C3:A,86:R"),
		PMRAccessible: ptr(true),
		Zone:          ptr("1"),
		Longitude:     ptr(4.832),
		Latitude:      ptr(45.757),
		GTFSStopID:    ptr("123456"),
	}
	require.NoError(t, database.UpsertStops(ctx, []Stop{first}))

	second := first
	second.Name = ptr("Bellecour - Le Viste")
	second.Zone = nil // nulls overwrite
	second.PMRAccessible = ptr(false)
	require.NoError(t, database.UpsertStops(ctx, []Stop{second}))

	assert.Equal(t, 1, countRows(t, database, "stops"))

	var (
		name string
		zone *string
		pmr  bool
	)
	require.NoError(t, database.Conn().QueryRow(
		"SELECT name, zone, pmr_accessible FROM stops WHERE id = ?", first.ID,
	).Scan(&name, &zone, &pmr))
	assert.Equal(t, "Bellecour - Le Viste", name)
	assert.Nil(t, zone)
	assert.False(t, pmr)
}

func TestUpsertLinesAndAlertsIdempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	line := Line{
		ID:           "tcllignebus_2_0_0.1",
		LineName:     ptr("Gare Part-Dieu - Vaulx"),
		LineSortCode: ptr("C3"),
		Category:     "bus",
		Color:        ptr("rgb(255, 0, 0)"),
	}
	require.NoError(t, database.UpsertLines(ctx, []Line{line, line}))
	line.Color = ptr("rgb(0, 0, 255)")
	require.NoError(t, database.UpsertLines(ctx, []Line{line}))
	assert.Equal(t, 1, countRows(t, database, "lines"))

	var color string
	require.NoError(t, database.Conn().QueryRow("SELECT color FROM lines WHERE id = ?", line.ID).Scan(&color))
	assert.Equal(t, "rgb(0, 0, 255)", color)

	alert := Alert{AlertID: "42", Title: ptr("Travaux"), Message: ptr("Arrêt déplacé"), SeverityLevel: ptr(3)}
	require.NoError(t, database.UpsertAlerts(ctx, []Alert{alert}))
	alert.SeverityLevel = ptr(1)
	require.NoError(t, database.UpsertAlerts(ctx, []Alert{alert}))
	assert.Equal(t, 1, countRows(t, database, "alerts"))

	var level int
	require.NoError(t, database.Conn().QueryRow("SELECT severity_level FROM alerts WHERE alert_id = '42'").Scan(&level))
	assert.Equal(t, 1, level)
}

func TestUpsertStationsAndIcons(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	st := Station{ID: "tclstation.1", StationAPIID: ptr("42"), StationID: ptr("42"), Name: ptr("Perrache")}
	require.NoError(t, database.UpsertStations(ctx, []Station{st, st}))
	assert.Equal(t, 1, countRows(t, database, "stations"))

	icons := []LineIcon{
		{LineCode: "C3", Mode: "bus", Icon: "C3.png"},
		{LineCode: "C3", Mode: "bus", Icon: "C3_new.png"},
	}
	require.NoError(t, database.UpsertLineIcons(ctx, icons))
	var icon string
	require.NoError(t, database.Conn().QueryRow("SELECT picto_ligne FROM line_icon_mapping WHERE code_ligne = 'C3'").Scan(&icon))
	assert.Equal(t, "C3_new.png", icon)
}

func TestReplaceVehiclePositionsPurgesMissing(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	vehicle := func(ref, delay string) VehiclePosition {
		return VehiclePosition{VehicleRef: ref, LineRef: ptr("ActIV:Line::C3:SYTRAL"), Delay: ptr(delay)}
	}

	require.NoError(t, database.ReplaceVehiclePositions(ctx, []VehiclePosition{vehicle("A", "PT1M"), vehicle("B", "PT2M")}))
	require.NoError(t, database.ReplaceVehiclePositions(ctx, []VehiclePosition{vehicle("B", "PT9M"), vehicle("C", "PT0S")}))

	rows, err := database.Conn().Query("SELECT vehicle_ref, delay FROM vehicle_positions ORDER BY vehicle_ref")
	require.NoError(t, err)
	defer rows.Close()

	got := map[string]string{}
	for rows.Next() {
		var ref, delay string
		require.NoError(t, rows.Scan(&ref, &delay))
		got[ref] = delay
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, map[string]string{"B": "PT9M", "C": "PT0S"}, got)
}

func TestReplaceVehiclePositionsDuplicateRefLastWins(t *testing.T) {
	database := openTestDB(t)

	require.NoError(t, database.ReplaceVehiclePositions(context.Background(), []VehiclePosition{
		{VehicleRef: "A", Delay: ptr("PT1M")},
		{VehicleRef: "A", Delay: ptr("PT3M")},
	}))

	var delay string
	require.NoError(t, database.Conn().QueryRow("SELECT delay FROM vehicle_positions WHERE vehicle_ref = 'A'").Scan(&delay))
	assert.Equal(t, "PT3M", delay)
	assert.Equal(t, 1, countRows(t, database, "vehicle_positions"))
}

func TestReplaceVehiclePositionsRollsBackOnFailure(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.ReplaceVehiclePositions(ctx, []VehiclePosition{{VehicleRef: "A"}}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, database.ReplaceVehiclePositions(cancelled, []VehiclePosition{{VehicleRef: "B"}}))

	var ref string
	require.NoError(t, database.Conn().QueryRow("SELECT vehicle_ref FROM vehicle_positions").Scan(&ref))
	assert.Equal(t, "A", ref)
}

func TestReplaceEstimatedTimetables(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	journeys := []EstimatedJourney{
		{
			DatedVehicleJourneyRef: "J1",
			LineRef:                ptr("ActIV:Line::C3:SYTRAL"),
			Calls: []EstimatedCall{
				{StopPointRef: ptr("TCL:StopPoint:Q:789012:"), GTFSStopID: ptr("789012"), StopOrder: ptr(1), AimedArrivalTime: ptr("2024-01-01T10:00:00+01:00")},
				{StopPointRef: ptr("TCL:StopPoint:Q:789013:"), GTFSStopID: ptr("789013"), StopOrder: ptr(1)}, // duplicate order ignored
				{StopPointRef: ptr("TCL:StopPoint:Q:789014:"), GTFSStopID: ptr("789014"), StopOrder: ptr(2)},
			},
		},
		{DatedVehicleJourneyRef: "J2"},
	}
	require.NoError(t, database.ReplaceEstimatedTimetables(ctx, journeys))
	assert.Equal(t, 2, countRows(t, database, "estimated_vehicle_journeys"))
	assert.Equal(t, 2, countRows(t, database, "estimated_calls"))

	var gtfsID string
	require.NoError(t, database.Conn().QueryRow(
		"SELECT gtfs_stop_id FROM estimated_calls WHERE stop_order = 1",
	).Scan(&gtfsID))
	assert.Equal(t, "789012", gtfsID, "first call for an order is kept")

	require.NoError(t, database.ReplaceEstimatedTimetables(ctx, []EstimatedJourney{{DatedVehicleJourneyRef: "J3"}}))
	assert.Equal(t, 1, countRows(t, database, "estimated_vehicle_journeys"))
	assert.Equal(t, 0, countRows(t, database, "estimated_calls"))
}

func TestRecordRun(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	id, err := database.RecordRun(ctx, Run{
		Job: "stops", StartedAt: start, FinishedAt: start.Add(time.Second), Written: 10, Skipped: 2,
	})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = database.RecordRun(ctx, Run{
		Job: "alerts", StartedAt: start.Add(-48 * time.Hour), FinishedAt: start, Error: "boom",
	})
	require.NoError(t, err)

	var errText *string
	require.NoError(t, database.Conn().QueryRow("SELECT error FROM ingestion_runs WHERE run_id = ?", id).Scan(&errText))
	assert.Nil(t, errText)

	n, err := database.PruneRuns(ctx, start.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, countRows(t, database, "ingestion_runs"))
}

func TestPruneKeepsLatestSuccessPerJob(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	record := func(job string, age time.Duration, errText string) {
		_, err := database.RecordRun(ctx, Run{
			Job: job, StartedAt: start.Add(-age), FinishedAt: start.Add(-age + time.Minute), Error: errText,
		})
		require.NoError(t, err)
	}
	record("gtfs", 30*24*time.Hour, "")
	record("gtfs", 20*24*time.Hour, "")
	record("gtfs", 10*24*time.Hour, "HTTP 503")
	record("stops", time.Hour, "")

	n, err := database.PruneRuns(ctx, start.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 2, countRows(t, database, "ingestion_runs"))

	last, err := database.LastSuccessfulRun(ctx, "gtfs")
	require.NoError(t, err)
	assert.True(t, last.Equal(start.Add(-20*24*time.Hour+time.Minute)), "got %s", last)

	never, err := database.LastSuccessfulRun(ctx, "lines-bus")
	require.NoError(t, err)
	assert.True(t, never.IsZero())
}

func TestReplaceGTFS(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	data := &GTFSData{
		Routes:    []GTFSRoute{{RouteID: "R1", RouteShortName: "C3", RouteColor: "FF0000"}},
		Trips:     []GTFSTrip{{TripID: "T1", RouteID: "R1", ServiceID: "S1", TripHeadsign: "Gare", DirectionID: ptr(0)}},
		StopTimes: []GTFSStopTime{{TripID: "T1", StopID: "123", StopSequence: 1, ArrivalTime: "08:00:00", ArrivalSeconds: 28800}},
		Calendars: []GTFSCalendar{{ServiceID: "S1", Monday: true, StartDate: "20240101", EndDate: "20241231"}},
		CalendarDates: []GTFSCalendarDate{
			{ServiceID: "S1", Date: "20240501", ExceptionType: 2},
		},
	}
	require.NoError(t, database.ReplaceGTFS(ctx, data))
	require.NoError(t, database.ReplaceGTFS(ctx, data))

	for table, want := range map[string]int{
		"gtfs_routes": 1, "gtfs_trips": 1, "gtfs_stop_times": 1, "gtfs_calendar": 1, "gtfs_calendar_dates": 1,
	} {
		assert.Equal(t, want, countRows(t, database, table), table)
	}

	var monday, tuesday int
	require.NoError(t, database.Conn().QueryRow("SELECT monday, tuesday FROM gtfs_calendar").Scan(&monday, &tuesday))
	assert.Equal(t, 1, monday)
	assert.Equal(t, 0, tuesday)
}
