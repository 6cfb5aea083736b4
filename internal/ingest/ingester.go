// Package ingest runs the ingestion jobs: fetch a feed, normalize every
// record, persist the batch, record the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/grandlyon"
	"github.com/tcl-live/backend/internal/logging"
	"github.com/tcl-live/backend/internal/normalize"
)

// Job names, as recorded in ingestion_runs and accepted by RunJobs
const (
	JobAlerts              = "alerts"
	JobStations            = "stations"
	JobStops               = "stops"
	JobLineIcons           = "line-icons"
	JobEstimatedTimetables = "estimated-timetables"
	JobVehiclePositions    = "vehicle-positions"
	JobGTFS                = "gtfs"
	jobLinesPrefix         = "lines-"
)

// LinesJob returns the job name of one line category
func LinesJob(category grandlyon.Category) string {
	return jobLinesPrefix + string(category)
}

// Feed is the subset of the GrandLyon client the jobs use
type Feed interface {
	VehicleMonitoring(ctx context.Context) ([]grandlyon.VehicleActivity, error)
	EstimatedTimetables(ctx context.Context) ([]grandlyon.EstimatedVehicleJourney, error)
	Alerts(ctx context.Context) ([]grandlyon.AlertRecord, error)
	Stations(ctx context.Context) ([]grandlyon.Feature, error)
	Stops(ctx context.Context) ([]grandlyon.Feature, error)
	Lines(ctx context.Context, category grandlyon.Category) ([]grandlyon.Feature, error)
}

// Store is the subset of the persistence layer the jobs write to
type Store interface {
	UpsertAlerts(ctx context.Context, alerts []db.Alert) error
	UpsertStations(ctx context.Context, stations []db.Station) error
	UpsertLines(ctx context.Context, lines []db.Line) error
	UpsertStops(ctx context.Context, stops []db.Stop) error
	UpsertLineIcons(ctx context.Context, icons []db.LineIcon) error
	ReplaceVehiclePositions(ctx context.Context, positions []db.VehiclePosition) error
	ReplaceEstimatedTimetables(ctx context.Context, journeys []db.EstimatedJourney) error
	ReplaceGTFS(ctx context.Context, data *db.GTFSData) error
	RecordRun(ctx context.Context, run db.Run) (string, error)
	LastSuccessfulRun(ctx context.Context, job string) (time.Time, error)
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScheduleLoader produces the static GTFS schedule rows
type ScheduleLoader interface {
	Load(ctx context.Context) (*db.GTFSData, error)
}

// Result summarizes one job invocation
type Result struct {
	Job     string
	Written int
	Skipped int  // records dropped by the normalizer
	Busy    bool // the previous run still held the guard; nothing was done
}

// Options configures an Ingester
type Options struct {
	Feed         Feed
	Store        Store
	IconsCSVPath string
	Schedule     ScheduleLoader // nil disables the gtfs job
	Logger       *slog.Logger

	// Optional guards, injectable so tests can inspect them
	TimetableGuard *Guard
	VehicleGuard   *Guard

	Now func() time.Time
}

// Ingester owns the per-entity ingestion jobs
type Ingester struct {
	feed           Feed
	store          Store
	iconsCSVPath   string
	schedule       ScheduleLoader
	logger         *slog.Logger
	timetableGuard *Guard
	vehicleGuard   *Guard
	now            func() time.Time
}

// NewIngester creates an Ingester
func NewIngester(opts Options) *Ingester {
	i := &Ingester{
		feed:           opts.Feed,
		store:          opts.Store,
		iconsCSVPath:   opts.IconsCSVPath,
		schedule:       opts.Schedule,
		logger:         logging.Component(opts.Logger, "ingest"),
		timetableGuard: opts.TimetableGuard,
		vehicleGuard:   opts.VehicleGuard,
		now:            opts.Now,
	}
	if i.timetableGuard == nil {
		i.timetableGuard = &Guard{}
	}
	if i.vehicleGuard == nil {
		i.vehicleGuard = &Guard{}
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// job is one named unit of work the scheduler and RunJobs can start
type job struct {
	name string
	run  func(ctx context.Context) (Result, error)
}

func (i *Ingester) staticJobs() []job {
	jobs := []job{
		{JobAlerts, i.IngestAlerts},
		{JobStations, i.IngestStations},
	}
	jobs = append(jobs, i.lineJobs()...)
	return append(jobs,
		job{JobStops, i.IngestStops},
		job{JobLineIcons, i.IngestLineIcons},
	)
}

// lineJobs is one IngestLines job per category; a failing category does
// not stop the others
func (i *Ingester) lineJobs() []job {
	jobs := make([]job, 0, len(grandlyon.Categories))
	for _, category := range grandlyon.Categories {
		category := category
		jobs = append(jobs, job{LinesJob(category), func(ctx context.Context) (Result, error) {
			return i.IngestLines(ctx, category)
		}})
	}
	return jobs
}

func (i *Ingester) realtimeJobs() []job {
	return []job{
		{JobEstimatedTimetables, i.IngestEstimatedTimetables},
		{JobVehiclePositions, i.IngestVehiclePositions},
	}
}

// allJobs is every single job RunJobs can resolve by name. The gtfs job is
// not part of any group: it runs on its own cadence.
func (i *Ingester) allJobs() []job {
	jobs := append(i.staticJobs(), i.realtimeJobs()...)
	return append(jobs, job{JobGTFS, i.IngestGTFS})
}

// JobNames lists every name RunJobs accepts, including the "static",
// "realtime" and "lines" groups
func (i *Ingester) JobNames() []string {
	names := []string{"static", "realtime", "lines"}
	for _, j := range i.allJobs() {
		names = append(names, j.name)
	}
	sort.Strings(names)
	return names
}

func (i *Ingester) resolve(name string) ([]job, bool) {
	switch name {
	case "static":
		return i.staticJobs(), true
	case "realtime":
		return i.realtimeJobs(), true
	case "lines":
		return i.lineJobs(), true
	}
	for _, j := range i.allJobs() {
		if j.name == name {
			return []job{j}, true
		}
	}
	return nil, false
}

// RunJobs runs the named jobs once, in order. Unknown names fail before
// anything runs. A failing job does not stop the following ones.
func (i *Ingester) RunJobs(ctx context.Context, names ...string) ([]Result, error) {
	var jobs []job
	for _, name := range names {
		resolved, ok := i.resolve(name)
		if !ok {
			return nil, fmt.Errorf("unknown job %q (known: %s)", name, strings.Join(i.JobNames(), ", "))
		}
		jobs = append(jobs, resolved...)
	}

	results := make([]Result, 0, len(jobs))
	var errs []error
	for _, j := range jobs {
		res, err := j.run(ctx)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return results, errors.Join(errs...)
}

// PruneRuns deletes run records older than retention
func (i *Ingester) PruneRuns(ctx context.Context, retention time.Duration) error {
	deleted, err := i.store.PruneRuns(ctx, i.now().Add(-retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		logging.LogOperation(i.logger, "pruned ingestion runs",
			slog.Int64("deleted", deleted),
			slog.Duration("retention", retention))
	}
	return nil
}

// execute runs one job body, logs its outcome and records the run.
// A 4xx from the provider is logged as a warning and not returned: the
// store was left untouched and the next cycle will try again.
func (i *Ingester) execute(ctx context.Context, name string, body func(ctx context.Context) (written, skipped int, err error)) (Result, error) {
	started := i.now()
	written, skipped, err := body(ctx)
	finished := i.now()

	res := Result{Job: name, Written: written, Skipped: skipped}
	run := db.Run{
		Job:        name,
		StartedAt:  started,
		FinishedAt: finished,
		Written:    written,
		Skipped:    skipped,
	}
	if err != nil {
		run.Error = err.Error()
	}
	if _, recErr := i.store.RecordRun(ctx, run); recErr != nil {
		logging.LogError(i.logger, "failed to record ingestion run", recErr, slog.String("job", name))
	}

	if errors.Is(err, grandlyon.ErrClientStatus) {
		i.logger.Warn("feed rejected request, store left untouched",
			slog.String("job", name),
			slog.String("error", err.Error()))
		return res, nil
	}
	if err != nil {
		logging.LogError(i.logger, "ingestion failed", err,
			slog.String("job", name),
			slog.Duration("duration", finished.Sub(started)))
		return res, err
	}

	i.logger.Debug("ingestion finished",
		slog.String("job", name),
		slog.Int("written", written),
		slog.Int("skipped", skipped),
		slog.Duration("duration", finished.Sub(started)))
	return res, nil
}

// batch is the outcome of normalizing one feed payload
type batch[T any] struct {
	items   []T
	skipped int
	missing map[string]int // optional SIRI field -> records lacking it
}

// normalizeAll maps every record, skipping and logging the ones that
// cannot be normalized
func normalizeAll[In, Out any](logger *slog.Logger, job string, records []In, fn func(In) (Out, normalize.Extraction, error)) batch[Out] {
	b := batch[Out]{items: make([]Out, 0, len(records))}
	for idx, rec := range records {
		out, ex, err := fn(rec)
		if err != nil {
			b.skipped++
			logger.Warn("skipping record",
				slog.String("job", job),
				slog.Int("index", idx),
				slog.String("error", err.Error()))
			continue
		}
		for _, field := range ex.Missing {
			if b.missing == nil {
				b.missing = make(map[string]int)
			}
			b.missing[field]++
		}
		b.items = append(b.items, out)
	}
	if len(b.missing) > 0 {
		logger.Debug("records with missing optional fields",
			slog.String("job", job),
			slog.Any("missing", b.missing))
	}
	return b
}

// plain adapts a normalizer that does no field extraction
func plain[In, Out any](fn func(In) (Out, error)) func(In) (Out, normalize.Extraction, error) {
	return func(in In) (Out, normalize.Extraction, error) {
		out, err := fn(in)
		return out, normalize.Extraction{}, err
	}
}
