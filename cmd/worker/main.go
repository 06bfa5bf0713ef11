// Package main provides the entrypoint for the CleanRoute monitor worker.
// The worker runs sweep cycles over monitored routes and publishes alerts;
// it exposes a health endpoint for the container platform.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleanroute/cleanroute/internal/alerting"
	"github.com/cleanroute/cleanroute/internal/config"
	"github.com/cleanroute/cleanroute/internal/database"
	"github.com/cleanroute/cleanroute/internal/exposure"
	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/monitor"
	"github.com/cleanroute/cleanroute/internal/routing/openrouteservice"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cleanroute-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting CleanRoute worker")

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reader griddata.Reader
	var monitorRepo monitor.Repository
	if os.Getenv("DB_HOST") != "" {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		reader = griddata.NewPostgresStore(pool)
		monitorRepo = monitor.NewPostgresRepository(pool)
	} else {
		log.Warn().Msg("DB_HOST not set - using in-memory stores")
		reader = griddata.NewMemoryStore()
		monitorRepo = monitor.NewInMemoryRepository()
	}

	provider := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:  cfg.ORSAPIKey,
		BaseURL: cfg.ORSBaseURL,
		Logger:  log,
	})

	calculator := exposure.NewCalculator(exposure.CalculatorConfig{
		Reader: reader,
		Logger: log,
		City:   cfg.City,
	})

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
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - alerts will only be logged")
		notifier = alerting.NewLogNotifier(log)
	}

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

	// Health endpoint for the container platform
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	go monitorService.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
