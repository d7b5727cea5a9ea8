package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"polyPaperBot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Ledger
	LedgerPath string // Current-segment path; historical segments live next to it

	// Archive database
	ArchiveDBPath string

	// Window / staleness parameters
	BarMinutes int // Bar size used for bucketing and age-in-bars (e.g. 15)
	StaleBars  int // Sweeper closes active trades older than this many bars

	// Sweeper
	SweepEnabled  bool
	SweepInterval time.Duration

	// Reconciliation collaborator
	ReconcileBaseURL string
	ReconcileTimeout time.Duration

	// Signal intake
	ListenAddr string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" (stdlog) or "json" (logrus)
}

// BarSeconds returns the bar size in seconds.
func (c *Config) BarSeconds() float64 {
	return float64(c.BarMinutes) * 60.0
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Ledger. LEDGER_PATH is the documented override; PAPER_TRADES_PATH is
	// kept as a fallback for older deployments.
	cfg.LedgerPath = getEnv("LEDGER_PATH", getEnv("PAPER_TRADES_PATH", "./data/paper_trades.jsonl"))
	if cfg.LedgerPath == "" {
		errs = append(errs, "LEDGER_PATH must be set")
	}

	cfg.ArchiveDBPath = getEnv("ARCHIVE_DB_PATH", "./data/paper_trades.db")

	// Window / staleness
	cfg.BarMinutes = getEnvAsInt("BAR_MINUTES", 15)
	if cfg.BarMinutes <= 0 {
		errs = append(errs, "BAR_MINUTES must be positive")
	}
	cfg.StaleBars = getEnvAsInt("MAX_OPEN_AGE_BARS", 2)
	if cfg.StaleBars <= 0 {
		errs = append(errs, "MAX_OPEN_AGE_BARS must be positive")
	}

	// Sweeper
	cfg.SweepEnabled = getEnvAsBool("ORPHAN_CLEANUP_ENABLED", true)
	sweepSeconds := getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60)
	if sweepSeconds <= 0 {
		errs = append(errs, "SWEEP_INTERVAL_SECONDS must be positive")
	}
	cfg.SweepInterval = time.Duration(sweepSeconds) * time.Second

	// Reconciliation
	cfg.ReconcileBaseURL = getEnv("RECONCILE_BASE_URL", "https://gamma-api.polymarket.com")
	if cfg.ReconcileBaseURL == "" {
		errs = append(errs, "RECONCILE_BASE_URL must be set")
	}
	reconcileTimeoutSeconds := getEnvAsInt("RECONCILE_TIMEOUT_SECONDS", 10)
	if reconcileTimeoutSeconds <= 0 {
		errs = append(errs, "RECONCILE_TIMEOUT_SECONDS must be positive")
	}
	cfg.ReconcileTimeout = time.Duration(reconcileTimeoutSeconds) * time.Second

	// Signal intake
	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8099")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be 'text' or 'json', got %q", cfg.LogFormat))
	}

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
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
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
