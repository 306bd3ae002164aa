/*
Package config loads service configuration.

PURPOSE:
  One Config struct for the whole service, loaded with viper: defaults
  first, then an optional YAML file, then environment overrides (prefix
  GUSS_, e.g. GUSS_ROUND_COOLDOWN_SECONDS=10). The round timing knobs
  mirror the game rules: a new round opens after a cooldown and runs for a
  fixed duration.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Round  RoundConfig  `mapstructure:"round"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Tap    TapConfig    `mapstructure:"tap"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type RoundConfig struct {
	CooldownSeconds int `mapstructure:"cooldown_seconds"`
	DurationSeconds int `mapstructure:"duration_seconds"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type TapConfig struct {
	// MaxAttempts bounds internal retries on serialization conflicts.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Cooldown returns the round cooldown as a duration.
func (c RoundConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Duration returns the round length as a duration.
func (c RoundConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// Load reads configuration from an optional file path plus environment
// variables, over built-in defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("db.path", "guss.db")
	v.SetDefault("round.cooldown_seconds", 30)
	v.SetDefault("round.duration_seconds", 60)
	v.SetDefault("auth.secret", "dev-secret-change-me")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("tap.max_attempts", 3)

	v.SetEnvPrefix("GUSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
