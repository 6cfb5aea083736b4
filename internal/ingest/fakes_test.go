package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/grandlyon"
)

// fakeFeed serves canned payloads. A non-nil block channel makes
// EstimatedTimetables and VehicleMonitoring wait until it is closed.
type fakeFeed struct {
	mu sync.Mutex

	activities []grandlyon.VehicleActivity
	journeys   []grandlyon.EstimatedVehicleJourney
	alerts     []grandlyon.AlertRecord
	stations   []grandlyon.Feature
	stops      []grandlyon.Feature
	lines      map[grandlyon.Category][]grandlyon.Feature

	err        error
	alertPanic bool
	entered    chan struct{}
	block      chan struct{}

	calls map[string]int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{lines: map[grandlyon.Category][]grandlyon.Feature{}, calls: map[string]int{}}
}

func (f *fakeFeed) hit(name string) error {
	f.mu.Lock()
	f.calls[name]++
	err := f.err
	f.mu.Unlock()
	return err
}

func (f *fakeFeed) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeFeed) wait(ctx context.Context) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeFeed) VehicleMonitoring(ctx context.Context) ([]grandlyon.VehicleActivity, error) {
	if err := f.hit("vehicles"); err != nil {
		return nil, err
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.activities, nil
}

func (f *fakeFeed) EstimatedTimetables(ctx context.Context) ([]grandlyon.EstimatedVehicleJourney, error) {
	if err := f.hit("timetables"); err != nil {
		return nil, err
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.journeys, nil
}

func (f *fakeFeed) Alerts(ctx context.Context) ([]grandlyon.AlertRecord, error) {
	if f.alertPanic {
		panic("alerts exploded")
	}
	if err := f.hit("alerts"); err != nil {
		return nil, err
	}
	return f.alerts, nil
}

func (f *fakeFeed) Stations(ctx context.Context) ([]grandlyon.Feature, error) {
	if err := f.hit("stations"); err != nil {
		return nil, err
	}
	return f.stations, nil
}

func (f *fakeFeed) Stops(ctx context.Context) ([]grandlyon.Feature, error) {
	if err := f.hit("stops"); err != nil {
		return nil, err
	}
	return f.stops, nil
}

func (f *fakeFeed) Lines(ctx context.Context, category grandlyon.Category) ([]grandlyon.Feature, error) {
	if err := f.hit("lines-" + string(category)); err != nil {
		return nil, err
	}
	return f.lines[category], nil
}

// fakeStore counts writes and keeps the last batch of each kind
type fakeStore struct {
	mu sync.Mutex

	alerts    []db.Alert
	stations  []db.Station
	lines     []db.Line
	stops     []db.Stop
	icons     []db.LineIcon
	vehicles  []db.VehiclePosition
	journeys  []db.EstimatedJourney
	gtfs      *db.GTFSData
	runs      []db.Run
	pruneCuts []time.Time

	writes map[string]int
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{writes: map[string]int{}}
}

func (s *fakeStore) write(name string) error {
	s.writes[name]++
	return s.err
}

func (s *fakeStore) writeCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[name]
}

func (s *fakeStore) recordedRuns() []db.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.Run(nil), s.runs...)
}

func (s *fakeStore) UpsertAlerts(ctx context.Context, alerts []db.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
	return s.write("alerts")
}

func (s *fakeStore) UpsertStations(ctx context.Context, stations []db.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = stations
	return s.write("stations")
}

func (s *fakeStore) UpsertLines(ctx context.Context, lines []db.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
	return s.write("lines")
}

func (s *fakeStore) UpsertStops(ctx context.Context, stops []db.Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops = stops
	return s.write("stops")
}

func (s *fakeStore) UpsertLineIcons(ctx context.Context, icons []db.LineIcon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.icons = icons
	return s.write("icons")
}

func (s *fakeStore) ReplaceVehiclePositions(ctx context.Context, positions []db.VehiclePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles = positions
	return s.write("vehicles")
}

func (s *fakeStore) ReplaceEstimatedTimetables(ctx context.Context, journeys []db.EstimatedJourney) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journeys = journeys
	return s.write("timetables")
}

func (s *fakeStore) ReplaceGTFS(ctx context.Context, data *db.GTFSData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gtfs = data
	return s.write("gtfs")
}

// LastSuccessfulRun reads the recorded runs the way the store does
func (s *fakeStore) LastSuccessfulRun(ctx context.Context, job string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last time.Time
	for _, r := range s.runs {
		if r.Job == job && r.Error == "" && r.FinishedAt.After(last) {
			last = r.FinishedAt
		}
	}
	return last, nil
}

func (s *fakeStore) RecordRun(ctx context.Context, run db.Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return "run-id", nil
}

func (s *fakeStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCuts = append(s.pruneCuts, cutoff)
	return 0, nil
}

// fakeSchedule returns data, or err, and counts loads
type fakeSchedule struct {
	mu    sync.Mutex
	data  *db.GTFSData
	err   error
	loads int
}

func (f *fakeSchedule) Load(ctx context.Context) (*db.GTFSData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeSchedule) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}
