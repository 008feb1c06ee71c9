package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr            string
	LogLevel        string
	CORSAllowOrigin string

	// Reports and run history
	ReportsDir string
	HistoryDB  string // SQLite path, empty disables run history

	// Scenario catalog
	ScenarioDir string // optional directory of *.yaml scenario files

	// Registry and engine limits
	MaxTests            int
	MaxConcurrentUsers  int
	RequestTimeoutMs    int
	MetricsIntervalMs   int
	WorkerJoinTimeoutMs int
	PreviewMaxBytes     int
	RecentErrors        int
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getEnv("ADDR", ":9090"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
	}
	cfg.ReportsDir = getEnv("REPORTS_DIR", "reports")
	cfg.HistoryDB = getEnv("HISTORY_DB", "")
	cfg.ScenarioDir = getEnv("SCENARIO_DIR", "")
	cfg.MaxTests = getEnvInt("MAX_TESTS", 100)
	cfg.MaxConcurrentUsers = getEnvInt("MAX_CONCURRENT_USERS", 1000)
	cfg.RequestTimeoutMs = getEnvInt("REQUEST_TIMEOUT_MS", 10000)
	cfg.MetricsIntervalMs = getEnvInt("METRICS_INTERVAL_MS", 5000)
	cfg.WorkerJoinTimeoutMs = getEnvInt("WORKER_JOIN_TIMEOUT_MS", 30000)
	cfg.PreviewMaxBytes = getEnvInt("RESULT_PREVIEW_MAX_BYTES", 500)
	cfg.RecentErrors = getEnvInt("RECENT_ERRORS", 10)
	return cfg
}

func (c Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalMs) * time.Millisecond
}

func (c Config) WorkerJoinTimeout() time.Duration {
	return time.Duration(c.WorkerJoinTimeoutMs) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
