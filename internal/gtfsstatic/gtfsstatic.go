// Package gtfsstatic turns a static GTFS archive into the schedule rows the
// next-passages query reads.
package gtfsstatic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jamespfennell/gtfs"

	"github.com/tcl-live/backend/internal/db"
)

// Fetch reads a GTFS archive from a local path or an http(s) URL
func Fetch(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GTFS request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error downloading GTFS data: HTTP %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	return b, nil
}

// Parse parses a GTFS zip archive and reports how many parser warnings it
// raised. Warnings never fail the import.
func Parse(b []byte) (*db.GTFSData, int, error) {
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	return Convert(static), len(static.Warnings), nil
}

// ErrNoSource is returned by Loader.Load when no archive is configured
var ErrNoSource = errors.New("no GTFS source configured")

// Loader fetches and converts the archive at Source on every Load
type Loader struct {
	Client *http.Client
	Source string
	Logger *slog.Logger
}

// Load fetches, parses and converts the archive
func (l *Loader) Load(ctx context.Context) (*db.GTFSData, error) {
	if l.Source == "" {
		return nil, ErrNoSource
	}
	b, err := Fetch(ctx, l.Client, l.Source)
	if err != nil {
		return nil, err
	}
	data, warnings, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if warnings > 0 && l.Logger != nil {
		l.Logger.Warn("GTFS archive parsed with warnings",
			slog.String("source", l.Source),
			slog.Int("warnings", warnings))
	}
	return data, nil
}

// Convert maps parsed GTFS onto the gtfs_* rows
func Convert(static *gtfs.Static) *db.GTFSData {
	data := &db.GTFSData{}

	for _, r := range static.Routes {
		data.Routes = append(data.Routes, db.GTFSRoute{
			RouteID:        r.Id,
			RouteShortName: r.ShortName,
			RouteLongName:  r.LongName,
			RouteColor:     r.Color,
			RouteTextColor: r.TextColor,
			RouteType:      int(r.Type),
		})
	}

	for _, s := range static.Services {
		if !s.StartDate.IsZero() {
			data.Calendars = append(data.Calendars, db.GTFSCalendar{
				ServiceID: s.Id,
				Monday:    s.Monday,
				Tuesday:   s.Tuesday,
				Wednesday: s.Wednesday,
				Thursday:  s.Thursday,
				Friday:    s.Friday,
				Saturday:  s.Saturday,
				Sunday:    s.Sunday,
				StartDate: s.StartDate.Format("20060102"),
				EndDate:   s.EndDate.Format("20060102"),
			})
		}
		for _, d := range s.AddedDates {
			data.CalendarDates = append(data.CalendarDates, db.GTFSCalendarDate{
				ServiceID: s.Id, Date: d.Format("20060102"), ExceptionType: 1,
			})
		}
		for _, d := range s.RemovedDates {
			data.CalendarDates = append(data.CalendarDates, db.GTFSCalendarDate{
				ServiceID: s.Id, Date: d.Format("20060102"), ExceptionType: 2,
			})
		}
	}

	for i := range static.Trips {
		t := &static.Trips[i]
		trip := db.GTFSTrip{
			TripID:       t.ID,
			TripHeadsign: t.Headsign,
			DirectionID:  directionID(t.DirectionId),
		}
		if t.Route != nil {
			trip.RouteID = t.Route.Id
		}
		if t.Service != nil {
			trip.ServiceID = t.Service.Id
		}
		data.Trips = append(data.Trips, trip)

		for _, st := range t.StopTimes {
			if st.Stop == nil {
				continue
			}
			data.StopTimes = append(data.StopTimes, db.GTFSStopTime{
				TripID:         t.ID,
				StopID:         st.Stop.Id,
				StopSequence:   st.StopSequence,
				ArrivalTime:    FormatTime(st.ArrivalTime),
				DepartureTime:  FormatTime(st.DepartureTime),
				ArrivalSeconds: int(st.ArrivalTime / time.Second),
			})
		}
	}
	return data
}

func directionID(d gtfs.DirectionID) *int {
	var v int
	switch d {
	case gtfs.DirectionID_False:
		v = 0
	case gtfs.DirectionID_True:
		v = 1
	default:
		return nil
	}
	return &v
}

// FormatTime renders an offset from service-day midnight as GTFS HH:MM:SS.
// Hours run past 24 for trips after midnight.
func FormatTime(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
