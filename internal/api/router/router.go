package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpmiddleware "github.com/edunext/lead-relay/internal/http/middleware"
	"github.com/edunext/lead-relay/internal/ledger"
	"github.com/edunext/lead-relay/internal/relay"
	"github.com/edunext/lead-relay/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	RelayHandler   *relay.Handler
	ReportHandler  *ledger.Handler
	MetricsHandler http.Handler

	RelayAPIKey    string
	AdminJWTSecret string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", httpmiddleware.APIKeyHeader},
			MaxAge:         300,
		}))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (partner webhook, health, metrics)
	r.Group(func(public chi.Router) {
		if cfg.RateLimitRPS > 0 {
			limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
			public.Use(limiter.Limit)
		}
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		public.Get("/status", cfg.RelayHandler.Status)
		public.With(httpmiddleware.APIKey(cfg.RelayAPIKey)).
			Post("/relay/{zone}", cfg.RelayHandler.Submit)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operator report endpoints
	r.Route("/admin/report", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
		admin.Get("/", cfg.ReportHandler.GetReport)
		admin.Delete("/", cfg.ReportHandler.ClearReport)
		admin.Post("/clear", cfg.ReportHandler.ClearReport)
	})

	return r
}
