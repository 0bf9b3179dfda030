// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the local state database (always absolute)
	BackendURL string // Base URL of the FinX backend API
	PushURL    string // WebSocket URL for the push channel (derived from BackendURL if empty)
	LogLevel   string
	BridgePort int // Port for the local UI bridge server
	DevMode    bool
	Intervals  IntervalConfig
}

// IntervalConfig holds the polling cadence for background refresh jobs.
// The store itself owns no timers; these drive the scheduler jobs.
type IntervalConfig struct {
	Portfolio       time.Duration // Full portfolio refresh
	Prices          time.Duration // Price-only refresh of held symbols
	BotStatus       time.Duration
	Recommendations time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. Check FINX_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path and ensure it exists
	dataDir := getEnv("FINX_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:    absDataDir,
		BackendURL: getEnv("FINX_BACKEND_URL", "http://localhost:8000"),
		PushURL:    getEnv("FINX_PUSH_URL", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		BridgePort: getEnvAsInt("BRIDGE_PORT", 8001),
		DevMode:    getEnvAsBool("DEV_MODE", false),
		Intervals: IntervalConfig{
			Portfolio:       getEnvAsDuration("PORTFOLIO_REFRESH_INTERVAL", 60*time.Second),
			Prices:          getEnvAsDuration("PRICE_REFRESH_INTERVAL", 15*time.Second),
			BotStatus:       getEnvAsDuration("BOT_STATUS_INTERVAL", 30*time.Second),
			Recommendations: getEnvAsDuration("RECOMMENDATIONS_INTERVAL", 5*time.Minute),
		},
	}

	if cfg.PushURL == "" {
		cfg.PushURL = derivePushURL(cfg.BackendURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// derivePushURL maps the backend HTTP base URL to its push channel
// endpoint.
func derivePushURL(backendURL string) string {
	url := backendURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimRight(url, "/") + "/ws"
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend URL is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
