// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"github.com/weiihann/archbench/store"
)

// Environment variable names.
const (
	EnvTable     = "DYNAMODB_TABLE_NAME"
	EnvStore     = "ARCHBENCH_STORE"
	EnvRedisAddr = "ARCHBENCH_REDIS_ADDR"
	EnvLogLevel  = "ARCHBENCH_LOG_LEVEL"
)

// Config holds the settings shared by the Lambda binaries and the CLI.
type Config struct {
	// Table is the store table or key prefix used by the light workload.
	Table string
	// Store selects the store backend: dynamodb, redis or memory.
	Store string
	// RedisAddr is the host:port of the redis backend.
	RedisAddr string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Table:     store.DefaultTable,
		Store:     store.BackendDynamoDB,
		RedisAddr: "localhost:6379",
		LogLevel:  "info",
	}
}

// Load reads configuration from the environment. Unset or empty variables
// fall back to DefaultConfig.
func Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("table", defaults.Table)
	v.SetDefault("store", defaults.Store)
	v.SetDefault("redis_addr", defaults.RedisAddr)
	v.SetDefault("log_level", defaults.LogLevel)

	bindings := map[string]string{
		"table":      EnvTable,
		"store":      EnvStore,
		"redis_addr": EnvRedisAddr,
		"log_level":  EnvLogLevel,
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Table:     strings.TrimSpace(v.GetString("table")),
		Store:     strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		RedisAddr: strings.TrimSpace(v.GetString("redis_addr")),
		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	switch c.Store {
	case store.BackendDynamoDB, store.BackendRedis, store.BackendMemory:
	default:
		return fmt.Errorf("%s: %w %q", EnvStore, store.ErrUnknownBackend, c.Store)
	}

	if c.Table == "" {
		return fmt.Errorf("%s must not be blank", EnvTable)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// SlogLevel returns the parsed LogLevel. An unparsable level, which
// Validate rejects, maps to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}

	return level, nil
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:   c.Store,
		Table:     c.Table,
		RedisAddr: c.RedisAddr,
	}
}
