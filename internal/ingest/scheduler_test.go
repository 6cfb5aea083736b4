package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcl-live/backend/internal/db"
	"github.com/tcl-live/backend/internal/logging"
)

func TestSchedulerRunsCyclesAndSurvivesPanics(t *testing.T) {
	feed := newFakeFeed()
	feed.alertPanic = true
	store := newFakeStore()
	ing := newTestIngester(feed, store, filepath.Join(t.TempDir(), "icons.csv"))

	sched := NewScheduler(ing, SchedulerOptions{
		StaticInterval:   time.Hour,
		RealtimeInterval: 10 * time.Millisecond,
		RunRetention:     24 * time.Hour,
		Logger:           logging.Discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		return feed.callCount("vehicles") >= 3 && feed.callCount("timetables") >= 3
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	// the static cycle ran once despite the panicking alerts job
	assert.Equal(t, 1, feed.callCount("stops"))
	assert.Equal(t, 1, feed.callCount("lines-rhonexpress"))
	assert.Equal(t, 1, store.writeCount("stops"))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.pruneCuts, 1)
}

func TestSchedulerWaitsForInFlightJobs(t *testing.T) {
	feed := newFakeFeed()
	feed.entered = make(chan struct{}, 16)
	feed.block = make(chan struct{})
	store := newFakeStore()
	ing := newTestIngester(feed, store, filepath.Join(t.TempDir(), "icons.csv"))

	sched := NewScheduler(ing, SchedulerOptions{
		StaticInterval:   time.Hour,
		RealtimeInterval: time.Hour,
		Logger:           logging.Discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sched.Run(ctx) }()

	<-feed.entered
	<-feed.entered
	cancel()

	select {
	case <-errCh:
		t.Fatal("Run returned while jobs were still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(feed.block)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	// the detached context let both real-time jobs finish their writes
	assert.Equal(t, 1, store.writeCount("vehicles"))
	assert.Equal(t, 1, store.writeCount("timetables"))
}

func TestStaticCycleSkipsWhileRunning(t *testing.T) {
	ing := newTestIngester(newFakeFeed(), newFakeStore(), "")
	var logs bytes.Buffer
	sched := NewScheduler(ing, SchedulerOptions{Logger: logging.New(&logs, "json", "debug")})

	require.True(t, sched.staticGuard.TryAcquire())
	sched.staticCycle(context.Background())
	sched.wg.Wait()
	sched.staticGuard.Release()

	feed := ing.feed.(*fakeFeed)
	assert.Equal(t, 0, feed.callCount("stops"))

	var skipped map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "previous static cycle still running, skipping tick" {
			skipped = entry
		}
	}
	require.NotNil(t, skipped)
	assert.Equal(t, "DEBUG", skipped["level"])
}

func TestSchedulerRefreshesStaleSchedule(t *testing.T) {
	now := time.Date(2025, 3, 12, 4, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		importAge time.Duration // zero: never imported
		wantLoads int
	}{
		{name: "never imported", wantLoads: 1},
		{name: "stale", importAge: 10 * 24 * time.Hour, wantLoads: 1},
		{name: "fresh", importAge: 2 * 24 * time.Hour, wantLoads: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			if tt.importAge > 0 {
				imported := now.Add(-tt.importAge)
				store.runs = append(store.runs, db.Run{Job: JobGTFS, StartedAt: imported, FinishedAt: imported})
			}
			schedule := &fakeSchedule{data: testSchedule()}
			ing := NewIngester(Options{
				Feed:     newFakeFeed(),
				Store:    store,
				Schedule: schedule,
				Logger:   logging.Discard(),
				Now:      func() time.Time { return now },
			})
			sched := NewScheduler(ing, SchedulerOptions{
				StaticInterval:   time.Hour,
				RealtimeInterval: time.Hour,
				GTFSMaxAge:       7 * 24 * time.Hour,
				Logger:           logging.Discard(),
			})

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- sched.Run(ctx) }()

			// the startup static cycle finishing means the startup jobs were all started
			require.Eventually(t, func() bool {
				return store.writeCount("stops") == 1
			}, 5*time.Second, 5*time.Millisecond)
			cancel()
			require.NoError(t, <-errCh)

			assert.Equal(t, tt.wantLoads, schedule.loadCount())
			assert.Equal(t, tt.wantLoads, store.writeCount("gtfs"))
		})
	}
}

func TestSchedulerWithoutGTFSMaxAge(t *testing.T) {
	schedule := &fakeSchedule{data: testSchedule()}
	ing := NewIngester(Options{Feed: newFakeFeed(), Store: newFakeStore(), Schedule: schedule, Logger: logging.Discard()})
	sched := NewScheduler(ing, SchedulerOptions{Logger: logging.Discard()})

	sched.gtfsRefresh(context.Background())
	sched.wg.Wait()
	assert.Equal(t, 0, schedule.loadCount())
}
