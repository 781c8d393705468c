package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"candleCache/internal/adapters/logger" // Import the logger package for LogLevel
)

// Upstream provider selection.
const (
	ProviderDukascopy = "dukascopy"
	ProviderBinance   = "binance"
)

// Config holds all application configuration.
type Config struct {
	// HTTP API
	Port int

	// Remote candle cache (SQLite)
	DBPath string

	// Local candle store (Redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Upstream provider
	Provider         string // "dukascopy" or "binance"
	DukascopyBaseURL string
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceTestnet   bool
	FetchTimeout     time.Duration // bound on every upstream call

	// Resolution policy. The coverage/tolerance numbers are deliberate
	// allowances for market closures and missing ticks.
	CoverageRatio     float64 // remote-cache completeness required to skip the upstream fetch
	BoundsTolerance   float64 // local-store watermark slack, fraction of the requested range
	MinPartialCandles int     // smallest overlap served on a failed coverage check
	UpsertBatchSize   int     // rows per remote upsert call

	// Backfill job
	BackfillInstrument string
	BackfillTimeframe  string
	BackfillDaysBack   int
	BackfillChunkDays  int
	BackfillChunkPause time.Duration

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// HTTP API
	cfg.Port = getEnvAsInt("PORT", 8080)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, "PORT must be a valid TCP port")
	}

	// Remote candle cache
	cfg.DBPath = getEnv("DB_PATH", "./data/candle_cache.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Local candle store
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)

	// Upstream provider
	cfg.Provider = strings.ToLower(getEnv("PROVIDER", ProviderDukascopy))
	if cfg.Provider != ProviderDukascopy && cfg.Provider != ProviderBinance {
		errs = append(errs, fmt.Sprintf("PROVIDER must be %q or %q", ProviderDukascopy, ProviderBinance))
	}
	cfg.DukascopyBaseURL = getEnv("DUKASCOPY_BASE_URL", "")
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceTestnet = getEnvAsBool("BINANCE_TESTNET", false)

	fetchTimeoutSeconds := getEnvAsInt("FETCH_TIMEOUT_SECONDS", 30)
	if fetchTimeoutSeconds <= 0 {
		errs = append(errs, "FETCH_TIMEOUT_SECONDS must be positive")
	}
	cfg.FetchTimeout = time.Duration(fetchTimeoutSeconds) * time.Second

	// Resolution policy
	var err error
	cfg.CoverageRatio, err = getEnvAsFloatRequired("COVERAGE_RATIO", 0.8)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COVERAGE_RATIO: %v", err))
	} else if cfg.CoverageRatio <= 0 || cfg.CoverageRatio > 1 {
		errs = append(errs, "COVERAGE_RATIO must be between 0.0 (exclusive) and 1.0")
	}

	cfg.BoundsTolerance, err = getEnvAsFloatRequired("BOUNDS_TOLERANCE", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BOUNDS_TOLERANCE: %v", err))
	} else if cfg.BoundsTolerance < 0 || cfg.BoundsTolerance >= 1 {
		errs = append(errs, "BOUNDS_TOLERANCE must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.MinPartialCandles = getEnvAsInt("MIN_PARTIAL_CANDLES", 10)
	if cfg.MinPartialCandles < 0 {
		errs = append(errs, "MIN_PARTIAL_CANDLES cannot be negative")
	}

	cfg.UpsertBatchSize = getEnvAsInt("UPSERT_BATCH_SIZE", 1000)
	if cfg.UpsertBatchSize <= 0 {
		errs = append(errs, "UPSERT_BATCH_SIZE must be positive")
	}

	// Backfill job
	cfg.BackfillInstrument = getEnv("BACKFILL_INSTRUMENT", "nq")
	cfg.BackfillTimeframe = getEnv("BACKFILL_TIMEFRAME", "m1")
	cfg.BackfillDaysBack = getEnvAsInt("BACKFILL_DAYS_BACK", 30)
	if cfg.BackfillDaysBack <= 0 {
		errs = append(errs, "BACKFILL_DAYS_BACK must be positive")
	}

	// Chunks are kept small to avoid upstream timeouts on large ranges.
	cfg.BackfillChunkDays = getEnvAsInt("BACKFILL_CHUNK_DAYS", 2)
	if cfg.BackfillChunkDays <= 0 {
		errs = append(errs, "BACKFILL_CHUNK_DAYS must be positive")
	}

	chunkPauseMs := getEnvAsInt("BACKFILL_CHUNK_PAUSE_MS", 500)
	if chunkPauseMs < 0 {
		errs = append(errs, "BACKFILL_CHUNK_PAUSE_MS cannot be negative")
	}
	cfg.BackfillChunkPause = time.Duration(chunkPauseMs) * time.Millisecond

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
