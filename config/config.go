// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the engine needs at bootstrap.
type Config struct {
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	TriggerWebhookSecret string        `env:"TRIGGER_WEBHOOK_SECRET"`
	CivicsAPIBaseURL     string        `env:"CIVICS_API_BASE_URL" envDefault:"https://www.googleapis.com/civicinfo/v2"`
	CivicsAPIKey         string        `env:"CIVICS_API_KEY"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	OutboxInterval       time.Duration `env:"OUTBOX_INTERVAL" envDefault:"30s"`
	MaxDBConns           int32         `env:"MAX_DB_CONNS" envDefault:"8"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if cfg.SweepInterval <= 0 || cfg.OutboxInterval <= 0 {
		return Config{}, fmt.Errorf("config: intervals must be positive")
	}
	return cfg, nil
}
