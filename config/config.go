package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	RemoveBGAPIKey   string        `env:"REMOVE_BG_API_KEY"`
	RemoveBGEndpoint string        `env:"REMOVE_BG_ENDPOINT" default:"https://api.remove.bg/v1.0/removebg"`
	RemoveBGTimeout  time.Duration `env:"REMOVE_BG_TIMEOUT" default:"60s"`

	SessionSecret string        `env:"SESSION_SECRET"`
	RedisURL      string        `env:"REDIS_URL"`
	SessionTTL    time.Duration `env:"SESSION_TTL" default:"24h"`
	BlobTTL       time.Duration `env:"BLOB_TTL" default:"1h"`

	// MaxUploadBytes is shown in the upload hint; uploads are hard-capped at 4x this value.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" default:"5242880"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	// Not fatal: every remote call will be rejected by the service instead.
	if cfg.RemoveBGAPIKey == "" {
		slog.Warn("REMOVE_BG_API_KEY is not set, background removal requests will fail")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.RemoveBGEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("REMOVE_BG_ENDPOINT must be an absolute URL, got %q", cfg.RemoveBGEndpoint)
	}
	if cfg.RemoveBGTimeout < 0 {
		return errors.New("REMOVE_BG_TIMEOUT must not be negative")
	}
	if cfg.BlobTTL <= 0 {
		return errors.New("BLOB_TTL must be positive")
	}
	if cfg.SessionTTL < 0 {
		return errors.New("SESSION_TTL must not be negative")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.SessionSecret != "" && len(cfg.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}
	return nil
}
