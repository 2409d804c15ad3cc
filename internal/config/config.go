// Package config provides environment-driven configuration for the server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AppConfig holds the server runtime configuration.
type AppConfig struct {
	Port          string
	DatabaseURL   string
	GeminiAPIKey  string
	HistoryWindow int           // turns of context sent to the model
	MaxTurnBytes  int           // cap on one user message
	ModelTimeout  time.Duration // per model call
}

// NewAppConfig creates the server configuration from environment variables.
// DATABASE_URL and GEMINI_API_KEY are required; everything else has defaults.
func NewAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		HistoryWindow: 20,
		MaxTurnBytes:  8 * 1024,
		ModelTimeout:  45 * time.Second,
	}

	if v := os.Getenv("HISTORY_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_WINDOW: %v", err)
		}
		cfg.HistoryWindow = n
	}
	if v := os.Getenv("MAX_TURN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_TURN_BYTES: %v", err)
		}
		cfg.MaxTurnBytes = n
	}
	if v := os.Getenv("MODEL_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MODEL_TIMEOUT_SECONDS: %v", err)
		}
		cfg.ModelTimeout = time.Duration(n) * time.Second
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize validates the configuration.
func (c *AppConfig) normalize() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required but not set")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required but not set")
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("HISTORY_WINDOW must be at least 1, got: %d", c.HistoryWindow)
	}
	if c.MaxTurnBytes < 256 {
		return fmt.Errorf("MAX_TURN_BYTES must be at least 256, got: %d", c.MaxTurnBytes)
	}
	if c.ModelTimeout < time.Second {
		return fmt.Errorf("MODEL_TIMEOUT_SECONDS must be at least 1 second")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
