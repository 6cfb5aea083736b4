package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.StaticInterval)
	assert.Equal(t, 5*time.Second, cfg.Ingest.RealtimeInterval)
	assert.Equal(t, 30*time.Second, cfg.Feed.Timeout)
	assert.Equal(t, "Europe/Paris", cfg.API.Timezone)
	assert.Equal(t, 7*24*time.Hour, cfg.GTFS.MaxAge)
	assert.Equal(t, 5*time.Minute, cfg.GTFS.Timeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tcl")
	t.Setenv("REALTIME_INTERVAL", "10")
	t.Setenv("STATIC_INTERVAL", "1m")
	t.Setenv("FEED_MAX_RETRIES", "4")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("TCL_API_TOKEN", "secret")
	t.Setenv("GTFS_MAX_AGE", "24h")
	t.Setenv("GTFS_TIMEOUT", "90")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost/tcl", cfg.Database.DSN)
	assert.Equal(t, 10*time.Second, cfg.Ingest.RealtimeInterval)
	assert.Equal(t, time.Minute, cfg.Ingest.StaticInterval)
	assert.Equal(t, 4, cfg.Feed.MaxRetries)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, "secret", cfg.Feed.Token)
	assert.Equal(t, 24*time.Hour, cfg.GTFS.MaxAge)
	assert.Equal(t, 90*time.Second, cfg.GTFS.Timeout)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := `
database:
  driver: sqlite
  dsn: /tmp/overlay.db
ingest:
  realtimeInterval: 7s
api:
  port: "9000"
log:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/overlay.db", cfg.Database.DSN)
	assert.Equal(t, 7*time.Second, cfg.Ingest.RealtimeInterval)
	assert.Equal(t, "text", cfg.Log.Format)
	// env wins over the file
	assert.Equal(t, "9100", cfg.API.Port)
	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Minute, cfg.Ingest.StaticInterval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "DB_DRIVER", "mysql"},
		{"bad timezone", "TRANSIT_TIMEZONE", "Mars/Olympus"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad feed url", "ALERTS_URL", "not a url"},
		{"negative gtfs max age", "GTFS_MAX_AGE", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TCL_TEST_KEY=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("TCL_TEST_KEY=local\n"), 0o600))
	t.Setenv("TCL_TEST_KEY", "")
	os.Unsetenv("TCL_TEST_KEY")

	LoadDotEnv(dir)

	assert.Equal(t, "local", os.Getenv("TCL_TEST_KEY"))
}
