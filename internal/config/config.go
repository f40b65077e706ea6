// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration. Runtime-tunable behavior (snapshot
// frequency, gift cost mode, rounding) lives in the settings database record,
// not here; this covers only what is needed before the databases are open.
type Config struct {
	DataDir          string // Base directory for the databases (always absolute)
	Port             int
	LogLevel         string
	DevMode          bool
	PriceFeedBaseURL string // Override for the Yahoo chart endpoint (tests, proxies)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FINTRACK_DATA_DIR", "")
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

	return &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("FINTRACK_PORT", 8000),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		PriceFeedBaseURL: getEnv("PRICE_FEED_BASE_URL", ""),
	}, nil
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
