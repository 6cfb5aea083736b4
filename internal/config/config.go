package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the poller, the API and the CLI
type Config struct {
	Database DatabaseConfig `yaml:"database" validate:"required"`
	Feed     FeedConfig     `yaml:"feed" validate:"required"`
	Ingest   IngestConfig   `yaml:"ingest" validate:"required"`
	API      APIConfig      `yaml:"api" validate:"required"`
	Log      LogConfig      `yaml:"log"`
	GTFS     GTFSConfig     `yaml:"gtfs"`
}

// DatabaseConfig selects the store driver and its data source
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// FeedConfig configures the GrandLyon open-data client
type FeedConfig struct {
	Token                  string        `yaml:"token"`
	Timeout                time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries             int           `yaml:"maxRetries" validate:"gte=0,lte=10"`
	VehicleMonitoringURL   string        `yaml:"vehicleMonitoringURL" validate:"required,url"`
	EstimatedTimetablesURL string        `yaml:"estimatedTimetablesURL" validate:"required,url"`
	AlertsURL              string        `yaml:"alertsURL" validate:"required,url"`
	WFSURL                 string        `yaml:"wfsURL" validate:"required,url"`
}

// IngestConfig configures the two ingestion cadences
type IngestConfig struct {
	StaticInterval   time.Duration `yaml:"staticInterval" validate:"gt=0"`
	RealtimeInterval time.Duration `yaml:"realtimeInterval" validate:"gt=0"`
	IconsCSVPath     string        `yaml:"iconsCSVPath" validate:"required"`
	RunRetention     time.Duration `yaml:"runRetention" validate:"gt=0"`
}

// APIConfig configures the read-only HTTP API
type APIConfig struct {
	Port         string        `yaml:"port" validate:"required,numeric"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
	RateLimitRPS int           `yaml:"rateLimitRPS" validate:"gte=0"`
	CacheTTL     time.Duration `yaml:"cacheTTL" validate:"gte=0"`
	Timezone     string        `yaml:"timezone" validate:"required"`
	StaticDir    string        `yaml:"staticDir"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// GTFSConfig points at the static GTFS archive used for the schedule tables.
// The poller reloads it once the last import is older than MaxAge.
type GTFSConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	MaxAge  time.Duration `yaml:"maxAge" validate:"gte=0"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "/data/tcl.db",
		},
		Feed: FeedConfig{
			Timeout:                30 * time.Second,
			MaxRetries:             2,
			VehicleMonitoringURL:   "https://data.grandlyon.com/siri-lite/2.0/vehicle-monitoring.json",
			EstimatedTimetablesURL: "https://data.grandlyon.com/siri-lite/2.0/estimated-timetables.json",
			AlertsURL:              "https://data.grandlyon.com/fr/datapusher/ws/rdata/tcl_sytral.tclalertetrafic_2/all.json?maxfeatures=-1&start=1",
			WFSURL:                 "https://data.grandlyon.com/geoserver/sytral/ows",
		},
		Ingest: IngestConfig{
			StaticInterval:   15 * time.Minute,
			RealtimeInterval: 5 * time.Second,
			IconsCSVPath:     "./Liste_pictogrammes_lignes.csv",
			RunRetention:     7 * 24 * time.Hour,
		},
		API: APIConfig{
			Port:         "8081",
			CORSOrigins:  []string{"http://localhost:5173"},
			RateLimitRPS: 20,
			CacheTTL:     15 * time.Minute,
			Timezone:     "Europe/Paris",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		GTFS: GTFSConfig{
			URL:     "https://download.data.grandlyon.com/files/rdata/tcl_sytral.tcltheorique/GTFS_TCL.ZIP",
			MaxAge:  7 * 24 * time.Hour,
			Timeout: 5 * time.Minute,
		},
	}
}

// LoadDotEnv loads .env then .env.local (which overrides) from dir.
// Missing files are not an error.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(dir + "/.env")
	_ = godotenv.Overload(dir + "/.env.local")
}

// Load builds the configuration: defaults, then the optional YAML file named by
// CONFIG_FILE, then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	if c.Database.Driver == "postgres" {
		c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)
	} else {
		c.Database.DSN = getEnv("SQLITE_DATABASE", c.Database.DSN)
	}

	c.Feed.Token = getEnv("TCL_API_TOKEN", c.Feed.Token)
	c.Feed.Timeout = getEnvDuration("FEED_TIMEOUT", c.Feed.Timeout)
	c.Feed.MaxRetries = getEnvInt("FEED_MAX_RETRIES", c.Feed.MaxRetries)
	c.Feed.VehicleMonitoringURL = getEnv("VEHICLE_MONITORING_URL", c.Feed.VehicleMonitoringURL)
	c.Feed.EstimatedTimetablesURL = getEnv("ESTIMATED_TIMETABLES_URL", c.Feed.EstimatedTimetablesURL)
	c.Feed.AlertsURL = getEnv("ALERTS_URL", c.Feed.AlertsURL)
	c.Feed.WFSURL = getEnv("WFS_URL", c.Feed.WFSURL)

	c.Ingest.StaticInterval = getEnvDuration("STATIC_INTERVAL", c.Ingest.StaticInterval)
	c.Ingest.RealtimeInterval = getEnvDuration("REALTIME_INTERVAL", c.Ingest.RealtimeInterval)
	c.Ingest.IconsCSVPath = getEnv("ICONS_CSV_PATH", c.Ingest.IconsCSVPath)
	c.Ingest.RunRetention = getEnvDuration("RUN_RETENTION", c.Ingest.RunRetention)

	c.API.Port = getEnv("PORT", c.API.Port)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.API.CORSOrigins = splitList(origins)
	}
	c.API.RateLimitRPS = getEnvInt("RATE_LIMIT_RPS", c.API.RateLimitRPS)
	c.API.CacheTTL = getEnvDuration("API_CACHE_TTL", c.API.CacheTTL)
	c.API.Timezone = getEnv("TRANSIT_TIMEZONE", c.API.Timezone)
	c.API.StaticDir = getEnv("STATIC_DIR", c.API.StaticDir)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.GTFS.URL = getEnv("GTFS_URL", c.GTFS.URL)
	c.GTFS.MaxAge = getEnvDuration("GTFS_MAX_AGE", c.GTFS.MaxAge)
	c.GTFS.Timeout = getEnvDuration("GTFS_TIMEOUT", c.GTFS.Timeout)
}

// Validate checks struct constraints and the timezone name
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.API.Timezone); err != nil {
		return fmt.Errorf("invalid configuration: timezone %q: %w", c.API.Timezone, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("5s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
