package gtfsstatic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamespfennell/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcl-live/backend/internal/db"
)

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatTime(0))
	assert.Equal(t, "08:05:30", FormatTime(8*time.Hour+5*time.Minute+30*time.Second))
	assert.Equal(t, "25:10:00", FormatTime(25*time.Hour+10*time.Minute))
}

func TestConvert(t *testing.T) {
	route := gtfs.Route{Id: "R1", ShortName: "C3", LongName: "Gare Saint-Paul - Laurent Bonnevay", Color: "E2001A", TextColor: "FFFFFF"}
	week := gtfs.Service{
		Id:           "WEEK",
		Monday:       true,
		Wednesday:    true,
		StartDate:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		RemovedDates: []time.Time{time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	extra := gtfs.Service{
		Id:         "EXTRA",
		AddedDates: []time.Time{time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)},
	}
	stop := gtfs.Stop{Id: "S1"}

	static := &gtfs.Static{
		Routes:   []gtfs.Route{route},
		Services: []gtfs.Service{week, extra},
		Trips: []gtfs.ScheduledTrip{
			{
				ID:          "T1",
				Route:       &route,
				Service:     &week,
				Headsign:    "Laurent Bonnevay",
				DirectionId: gtfs.DirectionID_False,
				StopTimes: []gtfs.ScheduledStopTime{
					{Stop: &stop, StopSequence: 3, ArrivalTime: 8*time.Hour + 5*time.Minute, DepartureTime: 8*time.Hour + 6*time.Minute},
					{StopSequence: 4},
				},
			},
			{ID: "T2", Route: &route, Service: &extra},
		},
	}

	data := Convert(static)

	require.Len(t, data.Routes, 1)
	assert.Equal(t, db.GTFSRoute{
		RouteID:        "R1",
		RouteShortName: "C3",
		RouteLongName:  "Gare Saint-Paul - Laurent Bonnevay",
		RouteColor:     "E2001A",
		RouteTextColor: "FFFFFF",
	}, data.Routes[0])

	// calendar_dates-only services get no calendar row
	require.Len(t, data.Calendars, 1)
	assert.Equal(t, "WEEK", data.Calendars[0].ServiceID)
	assert.Equal(t, "20250101", data.Calendars[0].StartDate)
	assert.Equal(t, "20251231", data.Calendars[0].EndDate)
	assert.True(t, data.Calendars[0].Wednesday)
	assert.False(t, data.Calendars[0].Sunday)

	assert.ElementsMatch(t, []db.GTFSCalendarDate{
		{ServiceID: "WEEK", Date: "20250501", ExceptionType: 2},
		{ServiceID: "EXTRA", Date: "20250714", ExceptionType: 1},
	}, data.CalendarDates)

	require.Len(t, data.Trips, 2)
	assert.Equal(t, "R1", data.Trips[0].RouteID)
	assert.Equal(t, "WEEK", data.Trips[0].ServiceID)
	require.NotNil(t, data.Trips[0].DirectionID)
	assert.Equal(t, 0, *data.Trips[0].DirectionID)
	assert.Nil(t, data.Trips[1].DirectionID)

	require.Len(t, data.StopTimes, 1)
	assert.Equal(t, db.GTFSStopTime{
		TripID:         "T1",
		StopID:         "S1",
		StopSequence:   3,
		ArrivalTime:    "08:05:00",
		DepartureTime:  "08:06:00",
		ArrivalSeconds: 29100,
	}, data.StopTimes[0])
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip-bytes"), 0o644))

	b, err := Fetch(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(b))

	_, err = Fetch(context.Background(), nil, filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestFetchHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/GTFS_TCL.ZIP" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("zip-bytes"))
	}))
	defer server.Close()

	b, err := Fetch(context.Background(), server.Client(), server.URL+"/GTFS_TCL.ZIP")
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(b))

	_, err = Fetch(context.Background(), server.Client(), server.URL+"/other.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestParseRejectsGarbage(t *testing.T) {
	_, _, err := Parse([]byte("not a zip"))
	assert.Error(t, err)
}

func TestLoaderErrors(t *testing.T) {
	_, err := (&Loader{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = (&Loader{Source: filepath.Join(t.TempDir(), "missing.zip")}).Load(context.Background())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "gtfs.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err = (&Loader{Source: path}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing GTFS data")
}
