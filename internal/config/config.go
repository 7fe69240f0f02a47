// Package config reads the ambient settings that seed the CLI flag defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	// Store is the store URL; empty means DefaultStoreURL.
	Store        string        `env:"TASKLIST_STORE"`
	Addr         string        `env:"TASKLIST_ADDR" default:":7777"`
	Format       string        `env:"TASKLIST_FORMAT" default:"json"`
	Selection    string        `env:"TASKLIST_SELECTION" default:"reselect"`
	RedisPrefix  string        `env:"TASKLIST_REDIS_PREFIX" default:"tasklist:"`
	PollInterval time.Duration `env:"TASKLIST_POLL_INTERVAL" default:"500ms"`

	LogLevel  string `env:"TASKLIST_LOG_LEVEL" default:"info"`
	LogFormat string `env:"TASKLIST_LOG_FORMAT" default:"text"`
	LogFile   string `env:"TASKLIST_LOG_FILE"`
}

// Load reads the given dotenv files (or ./.env when none are named) and then
// the environment. Variables already set in the environment win over dotenv.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found, using environment variables")
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load %v: %w", files, err)
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Format {
	case "json", "edn", "text":
	default:
		return fmt.Errorf("TASKLIST_FORMAT must be json, edn or text, got %q", cfg.Format)
	}
	switch cfg.Selection {
	case "reselect", "clear", "keep":
	default:
		return fmt.Errorf("TASKLIST_SELECTION must be reselect, clear or keep, got %q", cfg.Selection)
	}
	if cfg.PollInterval == 0 {
		return errors.New("TASKLIST_POLL_INTERVAL must not be zero (use a negative value to disable polling)")
	}
	return nil
}

// StoreURL returns the configured store, falling back to DefaultStoreURL.
func (c *Config) StoreURL() (string, error) {
	if c.Store != "" {
		return c.Store, nil
	}
	return DefaultStoreURL()
}

// DefaultStoreURL is a sqlite database under the user's config directory.
func DefaultStoreURL() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return "sqlite://" + filepath.ToSlash(filepath.Join(dir, "lists.db")), nil
}

// DataDir is where the default store and the TUI log live.
func DataDir() (string, error) {
	if d := os.Getenv("TASKLIST_HOME"); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, "tasklist"), nil
}
