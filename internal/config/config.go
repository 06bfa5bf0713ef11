// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full service configuration.
type Config struct {
	// HTTP
	Port string
	Env  string

	// City is the grid tiling the engine operates in.
	City string

	// Engine
	RequestTimeout time.Duration
	BatchTimeout   time.Duration
	UsePredictions bool

	// Result cache
	CacheCapacity int
	CacheTTL      time.Duration

	// Monitor
	MonitorInterval    time.Duration
	MonitorConcurrency int

	// Routing provider
	ORSAPIKey  string
	ORSBaseURL string

	// Alerting
	PubSubProjectID string
	AlertTopic      string

	// Telemetry
	OTLPEndpoint     string
	TelemetryEnabled bool
}

// Load reads configuration from the environment, applying defaults. A .env
// file is loaded first when present (local development).
func Load() *Config {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	return &Config{
		Port:               getEnv("APP_PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		City:               getEnv("CITY", "amsterdam"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 3*time.Second),
		BatchTimeout:       getEnvDuration("BATCH_TIMEOUT", 30*time.Second),
		UsePredictions:     getEnvBool("USE_PREDICTIONS", true),
		CacheCapacity:      getEnvInt("CACHE_CAPACITY", 512),
		CacheTTL:           getEnvDuration("CACHE_TTL", 15*time.Minute),
		MonitorInterval:    getEnvDuration("MONITOR_INTERVAL", 5*time.Minute),
		MonitorConcurrency: getEnvInt("MONITOR_CONCURRENCY", 3),
		ORSAPIKey:          getEnv("ORS_API_KEY", ""),
		ORSBaseURL:         getEnv("ORS_BASE_URL", ""),
		PubSubProjectID:    getEnv("PUBSUB_PROJECT_ID", ""),
		AlertTopic:         getEnv("ALERT_TOPIC", "route-alerts"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:   getEnvBool("OTEL_ENABLED", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
