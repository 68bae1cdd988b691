package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/edunext/lead-relay/internal/api/router"
	appconfig "github.com/edunext/lead-relay/internal/config"
	"github.com/edunext/lead-relay/internal/crm"
	"github.com/edunext/lead-relay/internal/ledger"
	"github.com/edunext/lead-relay/internal/notify"
	"github.com/edunext/lead-relay/internal/observability/metrics"
	"github.com/edunext/lead-relay/internal/relay"
	"github.com/edunext/lead-relay/internal/zone"
	"github.com/edunext/lead-relay/pkg/logging"
)

func main() {
	// Load .env if present (local development convenience)
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting lead-relay API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	zones, err := zone.Parse(cfg.ZoneMapJSON)
	if err != nil {
		logger.Error("invalid zone map", "error", err)
		os.Exit(1)
	}
	if zones.Len() == 0 {
		logger.Error("no destinations configured, set ZONE_MAP_JSON")
		os.Exit(1)
	}
	logger.Info("destinations configured", "zones", zones.Keys())

	fieldMap, err := crm.ParseFieldMap(cfg.FieldMapJSON)
	if err != nil {
		logger.Error("invalid field map", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, cleanup, err := buildLedgerStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize failure ledger", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}
	defer cleanup()
	logger.Info("failure ledger ready", "backend", cfg.LedgerBackend, "cap", cfg.LedgerCap)

	metricsHandler, relayMetrics := setupMetrics()

	alerter := buildAlerter(ctx, cfg, logger)
	if alerter != nil {
		logger.Info("failure alerts enabled", "provider", cfg.EmailProvider, "to", cfg.AlertEmail)
	}

	sink := crm.NewClient(crm.Config{
		Timeout:   cfg.ForwardTimeout,
		FieldMap:  fieldMap,
		SourceTag: cfg.SourceTag,
		Logger:    logger.Component("crm"),
	})

	processor := relay.NewProcessor(relay.ProcessorConfig{
		Sink:      sink,
		Ledger:    store,
		Metrics:   relayMetrics,
		Alerter:   alerter,
		Throttle:  cfg.ForwardThrottle,
		MediumTag: cfg.MediumTag,
		Logger:    logger.Component("relay"),
	})

	relayHandler := relay.NewHandler(zones, processor, relayMetrics, cfg.LedgerBackend, logger.Component("relay"))
	reportHandler := ledger.NewHandler(store, logger.Component("ledger"))

	r := router.New(&router.Config{
		Logger:             logger,
		RelayHandler:       relayHandler,
		ReportHandler:      reportHandler,
		MetricsHandler:     metricsHandler,
		RelayAPIKey:        cfg.RelayAPIKey,
		AdminJWTSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics wires relay metrics into a dedicated registry and returns the
// scrape handler alongside the metrics struct.
func setupMetrics() (http.Handler, *metrics.RelayMetrics) {
	registry := prometheus.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(registry)
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, relayMetrics
}

// buildLedgerStore selects the failure ledger backend from configuration.
// The returned cleanup closes any backend connections and is always non-nil.
func buildLedgerStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (ledger.Store, func(), error) {
	noop := func() {}

	switch cfg.LedgerBackend {
	case "", "memory":
		return ledger.NewMemoryStore(cfg.LedgerCap), noop, nil

	case "redis":
		if cfg.RedisAddr == "" {
			return nil, noop, fmt.Errorf("LEDGER_BACKEND=redis requires REDIS_ADDR")
		}
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		store := ledger.NewRedisStore(client, cfg.LedgerCap)
		return store, func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, noop, err
		}
		if pool == nil {
			return nil, noop, fmt.Errorf("LEDGER_BACKEND=postgres requires DATABASE_URL")
		}
		store := ledger.NewPostgresStore(pool, cfg.LedgerCap)
		return store, pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// connectPostgresPool opens a pgx pool, or returns nil when no URL is set.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// buildAlerter constructs the operator digest alerter from the configured
// email provider. Returns nil when alerting is disabled.
func buildAlerter(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *notify.FailureAlerter {
	if cfg.AlertEmail == "" {
		return nil
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger.Component("notify"))
		if sg == nil {
			logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty, alerts disabled")
			return nil
		}
		sender = sg
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config, alerts disabled", "error", err)
			return nil
		}
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger.Component("notify"))
	case "stub":
		sender = notify.NewStubEmailSender(logger.Component("notify"))
	default:
		logger.Warn("ALERT_EMAIL set but EMAIL_PROVIDER unrecognized, alerts disabled",
			"provider", cfg.EmailProvider)
		return nil
	}

	return notify.NewFailureAlerter(sender, notify.AlerterConfig{
		To:     cfg.AlertEmail,
		Window: cfg.AlertWindow,
	}, logger.Component("notify"))
}
