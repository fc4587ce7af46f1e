// Package config loads runtime configuration from the environment.
// Variables carry the GATEKEEPER_ prefix; a .env file in the working
// directory is honored when present. Command-line flags override the
// parsed values in cmd/gatekeeper.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted by StorageBackend
const (
	BackendJSON   = "json"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Config contains application configuration parameters.
type Config struct {
	// UsersPath - путь к файлу хранилища учетных записей
	UsersPath string `env:"USERS_PATH" envDefault:"users.json"`
	// StorageBackend - бэкенд хранилища: json, bolt или sqlite
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"json"`
	// LogPath - путь к файлу журнала аудита
	LogPath string `env:"LOG_PATH" envDefault:"logs.txt"`
	// CSVLogPath - путь для CSV-экспорта журнала
	CSVLogPath string `env:"CSV_LOG_PATH" envDefault:"logs.csv"`
	// LogLevel - уровень операционных логов: debug, info, warn, error
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// MaxFailedAttempts - порог блокировки учетной записи
	MaxFailedAttempts int `env:"MAX_FAILED_ATTEMPTS" envDefault:"3"`
	// DiscloseRemaining управляет подсказкой "N attempt(s) remaining"
	// при неверном пароле; подсказка сама по себе слабый сигнал
	// перечисления пользователей, поэтому отключаемая
	DiscloseRemaining bool `env:"DISCLOSE_REMAINING" envDefault:"true"`
}

// New loads configuration from environment variables
// A .env file is loaded first when present; missing .env is not an error
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "GATEKEEPER_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendJSON, BackendBolt, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (expected json, bolt or sqlite)", c.StorageBackend)
	}

	if c.MaxFailedAttempts <= 0 {
		return fmt.Errorf("max failed attempts must be positive, got %d", c.MaxFailedAttempts)
	}

	return nil
}

// SlogLevel maps the configured log level onto slog.Level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
