package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
)

// RouterOptions carries the handlers and HTTP settings of the API
type RouterOptions struct {
	Stops     *StopHandler
	Alerts    *AlertHandler
	Vehicles  *VehicleHandler
	Reference *ReferenceHandler
	Health    *HealthHandler

	CORSOrigins  []string
	RateLimitRPS int // 0 disables rate limiting
	StaticDir    string
	Logger       *slog.Logger
}

// NewRouter mounts every endpoint behind CORS, per-client rate limiting and
// gzip compression
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", opts.Health.GetHealth)

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(NewRateLimiter(opts.RateLimitRPS).Middleware)
		}

		r.Get("/stops", opts.Stops.GetStops)
		r.Get("/stops/{stopID}", opts.Stops.GetStop)
		r.Get("/stops/{stopID}/next-passages", opts.Stops.GetNextPassages)
		r.Get("/stations", opts.Reference.GetStations)
		r.Get("/lines", opts.Reference.GetLines)
		r.Get("/line-icons", opts.Reference.GetLineIcons)
		r.Get("/vehicles", opts.Vehicles.GetVehicles)
		r.Get("/alerts", opts.Alerts.GetAlerts)
		r.Get("/gtfs-rt/vehicle-positions.pb", opts.Vehicles.GetVehiclePositionsFeed)
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return gzhttp.GzipHandler(r)
}

// requestLogger logs one debug line per request
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request served",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
