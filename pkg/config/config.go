package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/korjavin/gamenight/pkg/logger"
)

// Config holds all configuration for the application
type Config struct {
	// Telegram Bot configuration
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Storage configuration
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/scheduler.db"`
	StateDir     string `env:"STATE_DIR" envDefault:"./data/state"`

	// HTTP health endpoint configuration
	HTTPPort int `env:"HTTP_PORT" envDefault:"3000"`

	// Reminder scheduler configuration
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1h"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// OpenAI configuration (optional; static fallbacks are used when unset)
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIAPIBase string `env:"OPENAI_API_BASE" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Global.Debug("No .env file loaded: %v", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("HTTP_PORT must be a valid port number, got %d", cfg.HTTPPort)
	}
	if cfg.ReminderInterval <= 0 {
		return nil, fmt.Errorf("REMINDER_INTERVAL must be positive, got %s", cfg.ReminderInterval)
	}

	// Log configuration with sensitive data redacted
	logger.Global.Info("Configuration loaded: %s", cfg)
	return cfg, nil
}

// String renders the configuration with secrets redacted
func (c *Config) String() string {
	return fmt.Sprintf(
		"{BotToken:%s DatabasePath:%s StateDir:%s HTTPPort:%d ReminderInterval:%s LogLevel:%s OpenAIAPIKey:%s OpenAIAPIBase:%s OpenAIModel:%s}",
		redact(c.BotToken), c.DatabasePath, c.StateDir, c.HTTPPort, c.ReminderInterval,
		c.LogLevel, redact(c.OpenAIAPIKey), c.OpenAIAPIBase, c.OpenAIModel,
	)
}

// redact hides all but the first characters of a secret
func redact(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 8 {
		return value[:8] + "...REDACTED..."
	}
	return "...REDACTED..."
}
