// Package main provides the entrypoint for the CleanRoute API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanroute/cleanroute/internal/alerting"
	"github.com/cleanroute/cleanroute/internal/api"
	"github.com/cleanroute/cleanroute/internal/config"
	"github.com/cleanroute/cleanroute/internal/database"
	"github.com/cleanroute/cleanroute/internal/engine"
	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/monitor"
	"github.com/cleanroute/cleanroute/internal/routecache"
	"github.com/cleanroute/cleanroute/internal/routing/openrouteservice"
	"github.com/cleanroute/cleanroute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cleanroute-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting CleanRoute API")

	cfg := config.Load()

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Grid data and monitor storage: Postgres when configured, in-memory
	// otherwise (local development).
	var reader griddata.Reader
	var monitorRepo monitor.Repository
	if os.Getenv("DB_HOST") != "" {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		reader = griddata.NewPostgresStore(pool)
		monitorRepo = monitor.NewPostgresRepository(pool)
	} else {
		log.Warn().Msg("DB_HOST not set - using in-memory stores")
		reader = griddata.NewMemoryStore()
		monitorRepo = monitor.NewInMemoryRepository()
	}

	// Routing provider
	if cfg.ORSAPIKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - routing requests will be rejected upstream")
	}
	provider := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:  cfg.ORSAPIKey,
		BaseURL: cfg.ORSBaseURL,
		Logger:  log,
	})

	// Exposure calculator
	calculator := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: reader,
		Logger: log,
		City:   cfg.City,
	})

	// Result cache with drift-checked entries
	cache := routecache.New(routecache.Config{
		Logger:      log,
		TTL:         cfg.CacheTTL,
		Capacity:    cfg.CacheCapacity,
		Fingerprint: engine.MeanAQIFingerprint(reader),
	})

	// Alert notifier: Pub/Sub when configured, log-only otherwise
	var notifier alerting.Notifier
	if cfg.PubSubProjectID != "" {
		psNotifier, err := alerting.NewPubSubNotifier(ctx, alerting.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.AlertTopic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub notifier")
		}
		defer psNotifier.Close()
		notifier = psNotifier
		log.Info().
			Str("project", cfg.PubSubProjectID).
			Str("topic", cfg.AlertTopic).
			Msg("pubsub notifier initialized")
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - alerts will only be logged")
		notifier = alerting.NewLogNotifier(log)
	}

	// Route monitor
	monitorService := monitor.NewService(monitor.ServiceConfig{
		Repository:     monitorRepo,
		Calculator:     calculator,
		Provider:       provider,
		Notifier:       notifier,
		Logger:         log,
		Interval:       cfg.MonitorInterval,
		Concurrency:    cfg.MonitorConcurrency,
		UsePredictions: cfg.UsePredictions,
	})

	// Optimization engine
	engineService := engine.NewService(engine.ServiceConfig{
		Provider:       provider,
		Calculator:     calculator,
		Cache:          cache,
		Reader:         reader,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		BatchTimeout:   cfg.BatchTimeout,
		UsePredictions: cfg.UsePredictions,
	})

	// Background monitor sweeps run alongside the API server
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitorService.Run(monitorCtx)

	router := api.NewRouter(api.RouterConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Logger:    log,
		Engine:    engineService,
		Monitor:   monitorService,
		Cache:     cache,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopMonitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
