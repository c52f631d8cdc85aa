// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"BetBank/internal/settle"
)

type Config struct {
	// Engine
	StartValue int64
	Mode       settle.Mode

	// NATS
	NATSURL string

	// Servers
	HTTPAddr    string
	MetricsAddr string

	// Channels
	RequestChanSize int
	PublishChanSize int
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		StartValue:      int64(envIntOrDefault("BETBANK_START_VALUE", 1000)),
		Mode:            settle.ParseMode(os.Getenv("BETBANK_MODE")),
		NATSURL:         getEnvDefault("BETBANK_NATS_URL", "nats://localhost:4222"),
		HTTPAddr:        getEnvDefault("BETBANK_HTTP_ADDR", ":8080"),
		MetricsAddr:     getEnvDefault("BETBANK_METRICS_ADDR", ":9091"),
		RequestChanSize: envIntOrDefault("BETBANK_REQUEST_CHAN_SIZE", 4096),
		PublishChanSize: envIntOrDefault("BETBANK_PUBLISH_CHAN_SIZE", 4096),
	}

	if cfg.StartValue <= 0 {
		return nil, fmt.Errorf("BETBANK_START_VALUE must be positive, got %d", cfg.StartValue)
	}
	if cfg.RequestChanSize <= 0 || cfg.PublishChanSize <= 0 {
		return nil, fmt.Errorf("channel sizes must be positive")
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envIntOrDefault(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return i
}
