// Package config loads pomodash runtime configuration.
//
// Per-user timer settings (durations, sessions per cycle) are not part of
// this package; they live in the store's settings table.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sadopc/pomodash/internal/errors"
)

// AppName is the directory name used under the user config dir.
const AppName = "pomodash"

// Snapshot backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config is the root configuration structure.
type Config struct {
	User     UserConfig     `yaml:"user" mapstructure:"user"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Timer    TimerConfig    `yaml:"timer" mapstructure:"timer"`
	Coach    CoachConfig    `yaml:"coach" mapstructure:"coach"`
}

// UserConfig identifies who the store is scoped to. An empty ID runs the
// app anonymously: the timer works but nothing is written to the store.
type UserConfig struct {
	ID string `yaml:"id" mapstructure:"id"`
}

type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SnapshotConfig selects where the timer snapshot is kept.
type SnapshotConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	Path      string `yaml:"path" mapstructure:"path"`
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisKey  string `yaml:"redis_key" mapstructure:"redis_key"`
}

type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// TimerConfig holds process-level timer knobs.
type TimerConfig struct {
	// TickInterval is how often the UI recomputes the remaining time.
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	// AlertInterval is the period of the repeating completion bell.
	AlertInterval time.Duration `yaml:"alert_interval" mapstructure:"alert_interval"`
	WakeLock      bool          `yaml:"wake_lock" mapstructure:"wake_lock"`
}

// CoachConfig points at an OpenAI-compatible endpoint.
type CoachConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// APIKey reads the key from the environment variable named by APIKeyEnv.
func (c CoachConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Dir returns ~/.config/pomodash (or the platform equivalent).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(base, AppName), nil
}

// Path returns the path of the YAML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", fmt.Errorf("get config path: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the loaded configuration for values the app cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.Wrap(errors.ErrInvalidConfig, "config is nil")
	}

	switch cfg.Snapshot.Backend {
	case BackendFile:
		if cfg.Snapshot.Path == "" {
			return errors.Wrap(errors.ErrInvalidConfig, "snapshot.path is required for the file backend")
		}
	case BackendRedis:
		if cfg.Snapshot.RedisAddr == "" {
			return errors.Wrap(errors.ErrInvalidConfig, "snapshot.redis_addr is required for the redis backend")
		}
		if cfg.Snapshot.RedisKey == "" {
			return errors.Wrap(errors.ErrInvalidConfig, "snapshot.redis_key must not be empty")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "snapshot.backend %q must be %q or %q",
			cfg.Snapshot.Backend, BackendFile, BackendRedis)
	}

	if cfg.Store.Path == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "store.path must not be empty")
	}

	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return errors.Wrapf(errors.ErrInvalidConfig, "log.level %q must be one of debug, info, warn, error", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return errors.Wrap(errors.ErrInvalidConfig, "log rotation limits must not be negative")
	}

	if cfg.Timer.TickInterval <= 0 || cfg.Timer.TickInterval > time.Second {
		return errors.Wrapf(errors.ErrInvalidConfig, "timer.tick_interval %s must be in (0, 1s]", cfg.Timer.TickInterval)
	}
	if cfg.Timer.AlertInterval <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "timer.alert_interval %s must be positive", cfg.Timer.AlertInterval)
	}
	return nil
}
