package config

import (
	"os"
	"time"

	"review-insights/pkg/config"
)

// Worker holds the stream consumption and pipeline settings.
type Worker struct {
	StreamTimeout      time.Duration `mapstructure:"stream_timeout"`
	RetryInterval      time.Duration `mapstructure:"retry_interval"`
	RetryBackoffBase   time.Duration `mapstructure:"retry_backoff_base"`
	StallCheckInterval time.Duration `mapstructure:"stall_check_interval"`
	StallAfter         time.Duration `mapstructure:"stall_after"`
	BatchSize          int           `mapstructure:"batch_size"`
	Concurrency        int           `mapstructure:"concurrency"`
}

// Scraper holds the external scraper process settings.
type Scraper struct {
	PythonBin string        `mapstructure:"python_bin"`
	WorkDir   string        `mapstructure:"work_dir"`
	TempDir   string        `mapstructure:"temp_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OpenAI holds the configuration for the OpenAI API.
type OpenAI struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI holds configuration for AI providers.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the worker service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	Worker   Worker          `mapstructure:"worker"`
	Scraper  Scraper         `mapstructure:"scraper"`
	OpenAI   OpenAI          `mapstructure:"openai"`
	Gemini   Gemini          `mapstructure:"gemini"`
	AI       AI              `mapstructure:"ai"`
	Telegram Telegram        `mapstructure:"telegram"`
}

// Load loads the worker configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 15
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 10
	}
	if c.Worker.RetryBackoffBase <= 0 {
		c.Worker.RetryBackoffBase = 5 * time.Second
	}
	if c.Worker.StreamTimeout <= 0 {
		c.Worker.StreamTimeout = 15 * time.Minute
	}
	if c.Worker.RetryInterval <= 0 {
		c.Worker.RetryInterval = 10 * time.Second
	}
	if c.Worker.StallCheckInterval <= 0 {
		c.Worker.StallCheckInterval = time.Minute
	}
	if c.Worker.StallAfter <= 0 {
		c.Worker.StallAfter = 30 * time.Minute
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = 10 * time.Minute
	}
	if c.Scraper.PythonBin == "" {
		c.Scraper.PythonBin = "python3"
	}
	if c.Scraper.TempDir == "" {
		c.Scraper.TempDir = os.TempDir()
	}
}
