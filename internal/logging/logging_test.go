package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("close boom") }

type fakeTx struct{ err error }

func (f fakeTx) Rollback() error { return f.err }

func TestNew(t *testing.T) {
	t.Run("json handler with component", func(t *testing.T) {
		var buf bytes.Buffer
		logger := Component(New(&buf, "json", "info"), "ingest")

		logger.Info("job finished", slog.Int("written", 3))

		out := buf.String()
		assert.Contains(t, out, `"level":"INFO"`)
		assert.Contains(t, out, `"component":"ingest"`)
		assert.Contains(t, out, `"written":3`)
	})

	t.Run("text handler respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "text", "warn")

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLogHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "debug")

	LogError(logger, "fetch failed", errors.New("timeout"), slog.String("feed", "alerts"))
	assert.Contains(t, buf.String(), `"error":"timeout"`)
	assert.Contains(t, buf.String(), `"feed":"alerts"`)

	buf.Reset()
	LogOperation(logger, "job_done", slog.Duration("duration", 0), slog.String("job", "stops"))
	assert.NotContains(t, buf.String(), `"duration"`)
	assert.Contains(t, buf.String(), `"job":"stops"`)

	buf.Reset()
	LogOperation(logger, "job_done", slog.Duration("duration", time.Second))
	assert.Contains(t, buf.String(), `"duration"`)

	buf.Reset()
	SafeClose(failingCloser{}, logger, "close_store")
	assert.Contains(t, buf.String(), "close boom")

	buf.Reset()
	SafeRollback(fakeTx{}, logger, "noop")
	assert.Empty(t, buf.String())

	// nil loggers are tolerated
	LogError(nil, "x", errors.New("y"))
	LogOperation(nil, "x")
}
