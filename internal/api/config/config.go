package config

import (
	"time"

	"review-insights/pkg/config"
)

// Rescrape holds the scheduled rescrape settings.
type Rescrape struct {
	Enabled      bool   `mapstructure:"enabled"`
	CronSchedule string `mapstructure:"cron_schedule"`
}

// Progress holds the SSE progress streaming settings.
type Progress struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Config holds the full configuration for the API service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Rescrape Rescrape        `mapstructure:"rescrape"`
	Progress Progress        `mapstructure:"progress"`
}

// Load loads the API configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Rescrape.CronSchedule == "" {
		cfg.Rescrape.CronSchedule = "*/5 * * * *"
	}
	if cfg.Progress.PollInterval <= 0 {
		cfg.Progress.PollInterval = time.Second
	}
	return &cfg, nil
}
