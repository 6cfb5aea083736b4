package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tcl-live/backend/internal/logging"
)

// SchedulerOptions configures the cadences
type SchedulerOptions struct {
	StaticInterval   time.Duration
	RealtimeInterval time.Duration
	RunRetention     time.Duration // ingestion_runs older than this are pruned after each static cycle

	// GTFSMaxAge is how old the imported schedule may get before it is
	// reloaded. Checked at startup and on every static tick; 0 disables.
	GTFSMaxAge time.Duration
	Logger     *slog.Logger
}

// Scheduler drives the static and real-time cycles of an Ingester
type Scheduler struct {
	ingester    *Ingester
	opts        SchedulerOptions
	logger      *slog.Logger
	staticGuard Guard
	gtfsGuard   Guard
	wg          sync.WaitGroup
}

// NewScheduler creates a scheduler. Zero intervals fall back to 15 minutes
// and 5 seconds.
func NewScheduler(ingester *Ingester, opts SchedulerOptions) *Scheduler {
	if opts.StaticInterval <= 0 {
		opts.StaticInterval = 15 * time.Minute
	}
	if opts.RealtimeInterval <= 0 {
		opts.RealtimeInterval = 5 * time.Second
	}
	return &Scheduler{
		ingester: ingester,
		opts:     opts,
		logger:   logging.Component(opts.Logger, "scheduler"),
	}
}

// Run starts both cycles immediately, then on their tickers, until ctx is
// cancelled. In-flight jobs are not cancelled: they run on a context
// detached from ctx and Run waits for them before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)

	logging.LogOperation(s.logger, "scheduler started",
		slog.Duration("static_interval", s.opts.StaticInterval),
		slog.Duration("realtime_interval", s.opts.RealtimeInterval))

	s.gtfsRefresh(jobCtx)
	s.staticCycle(jobCtx)
	s.realtimeCycle(jobCtx)

	staticTicker := time.NewTicker(s.opts.StaticInterval)
	defer staticTicker.Stop()
	realtimeTicker := time.NewTicker(s.opts.RealtimeInterval)
	defer realtimeTicker.Stop()

	for {
		select {
		case <-staticTicker.C:
			s.gtfsRefresh(jobCtx)
			s.staticCycle(jobCtx)
		case <-realtimeTicker.C:
			s.realtimeCycle(jobCtx)
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, waiting for in-flight jobs")
			s.wg.Wait()
			return nil
		}
	}
}

// staticCycle starts every static job concurrently. A cycle that finds the
// previous one still running is skipped.
func (s *Scheduler) staticCycle(ctx context.Context) {
	if !s.staticGuard.TryAcquire() {
		s.logger.Debug("previous static cycle still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.staticGuard.Release()

		var cycle sync.WaitGroup
		for _, j := range s.ingester.staticJobs() {
			j := j
			cycle.Add(1)
			go func() {
				defer cycle.Done()
				s.safely(ctx, j)
			}()
		}
		cycle.Wait()

		if s.opts.RunRetention > 0 {
			if err := s.ingester.PruneRuns(ctx, s.opts.RunRetention); err != nil {
				logging.LogError(s.logger, "failed to prune ingestion runs", err)
			}
		}
	}()
}

// gtfsRefresh reloads the schedule when it is stale. It has its own guard
// so a slow archive download never holds back the static cycle.
func (s *Scheduler) gtfsRefresh(ctx context.Context) {
	if s.opts.GTFSMaxAge <= 0 || s.ingester.schedule == nil {
		return
	}
	if !s.gtfsGuard.TryAcquire() {
		s.logger.Debug("GTFS refresh still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.gtfsGuard.Release()
		s.safely(ctx, job{JobGTFS, func(ctx context.Context) (Result, error) {
			return s.ingester.RefreshGTFSIfStale(ctx, s.opts.GTFSMaxAge)
		}})
	}()
}

// realtimeCycle starts the real-time jobs; their own guards handle overlap
func (s *Scheduler) realtimeCycle(ctx context.Context) {
	for _, j := range s.ingester.realtimeJobs() {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.safely(ctx, j)
		}()
	}
}

// safely runs one job, turning a panic into a logged error. Job errors are
// already logged by the job itself.
func (s *Scheduler) safely(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError(s.logger, "ingestion job panicked", fmt.Errorf("%v", r),
				slog.String("job", j.name),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	_, _ = j.run(ctx)
}
