package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/sadopc/pomodash/internal/errors"
)

// EnvPrefix is prepended to every environment override, e.g.
// POMODASH_USER_ID or POMODASH_SNAPSHOT_BACKEND.
const EnvPrefix = "POMODASH"

// newViperInstance creates a viper with defaults and POMODASH_ env binding.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound) || os.IsNotExist(err)
}

// Load reads configuration with the following precedence (highest first):
//  1. Environment variables (POMODASH_* prefix, .env in the working dir included)
//  2. ~/.config/pomodash/config.yaml
//  3. Built-in defaults
//
// A missing config file is not an error.
func Load(ctx context.Context) (*Config, error) {
	path, err := Path()
	if err != nil {
		path = ""
	}
	return LoadFromPath(ctx, path)
}

// LoadFromPath is Load with an explicit config file. An empty path skips the
// file and uses defaults plus the environment.
func LoadFromPath(ctx context.Context, path string) (*Config, error) {
	// .env values never override variables already set in the environment.
	_ = godotenv.Load()

	v := newViperInstance()
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
				return nil, errors.Wrapf(err, "failed to read config file %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("snapshot.backend", cfg.Snapshot.Backend).
		Str("store.path", cfg.Store.Path).
		Dur("timer.tick_interval", cfg.Timer.TickInterval).
		Bool("anonymous", cfg.User.ID == "").
		Msg("configuration loaded")

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
// Keys must match the mapstructure tags.
func setDefaults(v *viper.Viper) {
	dir, err := Dir()
	if err != nil {
		dir = "."
	}

	v.SetDefault("user.id", "")

	v.SetDefault("store.path", filepath.Join(dir, AppName+".db"))

	v.SetDefault("snapshot.backend", BackendFile)
	v.SetDefault("snapshot.path", filepath.Join(dir, "timer.json"))
	v.SetDefault("snapshot.redis_addr", "")
	v.SetDefault("snapshot.redis_key", "pomodash.timer")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "logs", AppName+".log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("timer.tick_interval", "1s")
	v.SetDefault("timer.alert_interval", "3s")
	v.SetDefault("timer.wake_lock", true)

	v.SetDefault("coach.base_url", "")
	v.SetDefault("coach.model", "gpt-4o-mini")
	v.SetDefault("coach.api_key_env", "OPENAI_API_KEY")
}

func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
