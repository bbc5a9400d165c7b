package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"3000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// DatabaseURL enables the finished-game archive when set.
	DatabaseURL      string `env:"DATABASE_URL"`
	ArchiveQueueSize int    `env:"ARCHIVE_QUEUE_SIZE" envDefault:"64"`

	ChatHistoryLimit int           `env:"CHAT_HISTORY_LIMIT" envDefault:"100"`
	OutboxSize       int           `env:"OUTBOX_SIZE" envDefault:"32"`
	PingInterval     time.Duration `env:"PING_INTERVAL" envDefault:"25s"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.OutboxSize <= 0 {
		return fmt.Errorf("OUTBOX_SIZE must be positive")
	}
	if c.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}
	if c.ArchiveQueueSize <= 0 {
		return fmt.Errorf("ARCHIVE_QUEUE_SIZE must be positive")
	}
	return nil
}
