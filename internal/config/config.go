package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DotEnvFile is read, when present, before the environment is parsed.
// Variables already set in the environment take precedence.
const DotEnvFile = ".env"

// Config holds all runtime configuration for a trading session.
type Config struct {
	LogLevel          string
	PoolWorkers       int
	PoolQueueCapacity int
	SettleTimeout     time.Duration // 0 waits for every admitted order without bound
	MonitorInterval   time.Duration
	StallAfter        time.Duration
	DiagnosticsAddr   string // empty disables the diagnostics server
	ShutdownTimeout   time.Duration
	ScenarioFile      string // empty runs the built-in scenario
}

// Load reads configuration from the optional .env file and environment
// variables, applies defaults, and validates values. It returns an error
// for any invalid value.
func Load() (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	workers, err := getInt("POOL_WORKERS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid POOL_WORKERS: %w", err)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("invalid POOL_WORKERS: %d, must be > 0", workers)
	}

	queueCapacity, err := getInt("POOL_QUEUE_CAPACITY", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid POOL_QUEUE_CAPACITY: %w", err)
	}
	if queueCapacity <= 0 {
		return nil, fmt.Errorf("invalid POOL_QUEUE_CAPACITY: %d, must be > 0", queueCapacity)
	}

	settleTimeout, err := getDuration("SETTLE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLE_TIMEOUT: %w", err)
	}
	if settleTimeout < 0 {
		return nil, fmt.Errorf("invalid SETTLE_TIMEOUT: %v, must be >= 0", settleTimeout)
	}

	monitorInterval, err := getDuration("MONITOR_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: %w", err)
	}
	if monitorInterval <= 0 {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: %v, must be > 0", monitorInterval)
	}

	stallAfter, err := getDuration("STALL_AFTER", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid STALL_AFTER: %w", err)
	}
	if stallAfter < 0 {
		return nil, fmt.Errorf("invalid STALL_AFTER: %v, must be >= 0", stallAfter)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		LogLevel:          logLevel,
		PoolWorkers:       workers,
		PoolQueueCapacity: queueCapacity,
		SettleTimeout:     settleTimeout,
		MonitorInterval:   monitorInterval,
		StallAfter:        stallAfter,
		DiagnosticsAddr:   getStr("DIAGNOSTICS_ADDR", ""),
		ShutdownTimeout:   shutdownTimeout,
		ScenarioFile:      getStr("SCENARIO_FILE", ""),
	}, nil
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", path, err)
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
