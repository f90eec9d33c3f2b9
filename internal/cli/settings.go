// Package cli holds the glue shared by the command-line entry points:
// settings loading, engine construction, config hot-reload and report
// rendering.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RedisSettings configures the optional Redis backend.
type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ThresholdSettings configures one metric alert threshold.
type ThresholdSettings struct {
	Team        string        `mapstructure:"team"`
	Stage       string        `mapstructure:"stage"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// Settings is the full CLI configuration, loaded from stagecoach.yaml,
// STAGECOACH_* environment variables and flags, in ascending precedence.
type Settings struct {
	ConfigDir  string              `mapstructure:"config_dir"`
	Addr       string              `mapstructure:"addr"`
	LogLevel   string              `mapstructure:"log_level"`
	Watch      bool                `mapstructure:"watch"`
	Tick       time.Duration       `mapstructure:"tick"`
	WebhookURL string              `mapstructure:"webhook_url"`
	Redis      RedisSettings       `mapstructure:"redis"`
	Thresholds []ThresholdSettings `mapstructure:"thresholds"`
}

// NewViper creates a viper instance with the standard lookup conventions.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("stagecoach")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/stagecoach")
	v.SetEnvPrefix("STAGECOACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("config_dir", "./config")
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("tick", 10*time.Second)
	return v
}

// LoadSettings reads settings from the configured sources. A missing config
// file is fine; defaults and environment still apply.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// Level parses the configured log level, defaulting to info.
func (s *Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
