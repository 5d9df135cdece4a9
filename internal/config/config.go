package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP server timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage
	StorageBackend string // "sqlite" or "memory"
	SQLitePath     string

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Auth
	JWTSecret string

	// Ledger behavior
	EnforceDestOwnership bool // authorize transfer destinations, not just check existence
	BalanceAllStatuses   bool // pending/failed transactions still move balances

	// Subscription worker
	WorkerInterval   time.Duration
	WorkerBatchLimit int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 30*time.Second),

		StorageBackend: getEnv("STORAGE_BACKEND", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/finbook.db"),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret: getEnv("JWT_SECRET", "finbook-default-dev-secret-change-me"),

		EnforceDestOwnership: getEnv("LEDGER_ENFORCE_DEST_OWNERSHIP", "false") == "true",
		BalanceAllStatuses:   getEnv("LEDGER_BALANCE_ALL_STATUSES", "true") == "true",

		WorkerInterval:   getEnvDuration("SUBSCRIPTION_WORKER_INTERVAL", time.Minute),
		WorkerBatchLimit: getEnvInt("SUBSCRIPTION_WORKER_BATCH_LIMIT", 50),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
