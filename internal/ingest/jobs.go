package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/grandlyon"
	"github.com/tcl-live/backend/internal/gtfsstatic"
	"github.com/tcl-live/backend/internal/logging"
	"github.com/tcl-live/backend/internal/normalize"
)

// IngestAlerts upserts the traffic alerts
func (i *Ingester) IngestAlerts(ctx context.Context) (Result, error) {
	return i.execute(ctx, JobAlerts, func(ctx context.Context) (int, int, error) {
		records, err := i.feed.Alerts(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to fetch alerts: %w", err)
		}
		b := normalizeAll(i.logger, JobAlerts, records, plain(normalize.Alert))
		if err := i.store.UpsertAlerts(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestStations upserts the metro/tram stations
func (i *Ingester) IngestStations(ctx context.Context) (Result, error) {
	return i.execute(ctx, JobStations, func(ctx context.Context) (int, int, error) {
		features, err := i.feed.Stations(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to fetch stations: %w", err)
		}
		b := normalizeAll(i.logger, JobStations, features, plain(normalize.Station))
		if err := i.store.UpsertStations(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestLines upserts the lines of one category
func (i *Ingester) IngestLines(ctx context.Context, category grandlyon.Category) (Result, error) {
	name := LinesJob(category)
	return i.execute(ctx, name, func(ctx context.Context) (int, int, error) {
		features, err := i.feed.Lines(ctx, category)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to fetch %s lines: %w", category, err)
		}
		b := normalizeAll(i.logger, name, features, plain(func(f grandlyon.Feature) (db.Line, error) {
			return normalize.Line(f, category)
		}))
		if err := i.store.UpsertLines(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestStops upserts the stops
func (i *Ingester) IngestStops(ctx context.Context) (Result, error) {
	return i.execute(ctx, JobStops, func(ctx context.Context) (int, int, error) {
		features, err := i.feed.Stops(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to fetch stops: %w", err)
		}
		b := normalizeAll(i.logger, JobStops, features, plain(normalize.Stop))
		if err := i.store.UpsertStops(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestLineIcons upserts the line pictogram mapping from the local CSV
func (i *Ingester) IngestLineIcons(ctx context.Context) (Result, error) {
	return i.execute(ctx, JobLineIcons, func(ctx context.Context) (int, int, error) {
		f, err := os.Open(i.iconsCSVPath)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to open icon csv: %w", err)
		}
		defer logging.SafeClose(f, i.logger, "icon csv")

		rows, err := normalize.IconRows(f)
		if err != nil {
			return 0, 0, err
		}
		b := normalizeAll(i.logger, JobLineIcons, rows, plain(normalize.LineIcon))
		if err := i.store.UpsertLineIcons(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestEstimatedTimetables replaces the estimated journeys and calls.
// While a previous run is in flight the call returns at once with Busy set.
func (i *Ingester) IngestEstimatedTimetables(ctx context.Context) (Result, error) {
	if !i.timetableGuard.TryAcquire() {
		i.logger.Debug("previous run still in flight, skipping", slog.String("job", JobEstimatedTimetables))
		return Result{Job: JobEstimatedTimetables, Busy: true}, nil
	}
	defer i.timetableGuard.Release()

	return i.execute(ctx, JobEstimatedTimetables, func(ctx context.Context) (int, int, error) {
		journeys, err := i.feed.EstimatedTimetables(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to fetch estimated timetables: %w", err)
		}
		b := normalizeAll(i.logger, JobEstimatedTimetables, journeys, normalize.EstimatedJourney)
		if err := i.store.ReplaceEstimatedTimetables(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestVehiclePositions replaces the vehicle snapshot, guarded like
// IngestEstimatedTimetables
func (i *Ingester) IngestVehiclePositions(ctx context.Context) (Result, error) {
	if !i.vehicleGuard.TryAcquire() {
		i.logger.Debug("previous run still in flight, skipping", slog.String("job", JobVehiclePositions))
		return Result{Job: JobVehiclePositions, Busy: true}, nil
	}
	defer i.vehicleGuard.Release()

	return i.execute(ctx, JobVehiclePositions, func(ctx context.Context) (int, int, error) {
		activities, err := i.feed.VehicleMonitoring(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to fetch vehicle monitoring: %w", err)
		}
		b := normalizeAll(i.logger, JobVehiclePositions, activities, normalize.VehiclePosition)
		if err := i.store.ReplaceVehiclePositions(ctx, b.items); err != nil {
			return 0, b.skipped, err
		}
		return len(b.items), b.skipped, nil
	})
}

// IngestGTFS replaces the gtfs_* schedule tables with a freshly loaded
// archive. A failed load leaves the previous schedule in place.
func (i *Ingester) IngestGTFS(ctx context.Context) (Result, error) {
	return i.execute(ctx, JobGTFS, func(ctx context.Context) (int, int, error) {
		if i.schedule == nil {
			return 0, 0, gtfsstatic.ErrNoSource
		}
		data, err := i.schedule.Load(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to load GTFS schedule: %w", err)
		}
		if err := i.store.ReplaceGTFS(ctx, data); err != nil {
			return 0, 0, err
		}
		logging.LogOperation(i.logger, "GTFS schedule imported",
			slog.Int("routes", len(data.Routes)),
			slog.Int("trips", len(data.Trips)),
			slog.Int("stop_times", len(data.StopTimes)),
			slog.Int("calendars", len(data.Calendars)),
			slog.Int("calendar_dates", len(data.CalendarDates)),
		)
		written := len(data.Routes) + len(data.Trips) + len(data.StopTimes) +
			len(data.Calendars) + len(data.CalendarDates)
		return written, 0, nil
	})
}

// RefreshGTFSIfStale runs IngestGTFS when the last successful import is
// missing or older than maxAge. A fresh schedule yields an empty Result and
// records no run.
func (i *Ingester) RefreshGTFSIfStale(ctx context.Context, maxAge time.Duration) (Result, error) {
	last, err := i.store.LastSuccessfulRun(ctx, JobGTFS)
	if err != nil {
		logging.LogError(i.logger, "failed to check GTFS schedule age", err)
		return Result{Job: JobGTFS}, err
	}
	if !last.IsZero() && i.now().Sub(last) < maxAge {
		i.logger.Debug("GTFS schedule is fresh, skipping refresh",
			slog.Time("imported_at", last),
			slog.Duration("max_age", maxAge))
		return Result{Job: JobGTFS}, nil
	}
	i.logger.Info("GTFS schedule missing or stale, refreshing", slog.Time("imported_at", last))
	return i.IngestGTFS(ctx)
}
