// Package config provides centralized configuration for AniQuiz: embedded
// defaults, optional user config file, then environment overrides with the
// ANIQUIZ_ prefix.
package config

import "time"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	AniList AniListConfig `mapstructure:"anilist" yaml:"anilist"`
	Quiz    QuizConfig    `mapstructure:"quiz" yaml:"quiz"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Health  HealthConfig  `mapstructure:"health" yaml:"health"`
	Debug   DebugConfig   `mapstructure:"debug" yaml:"debug"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig contains cache store configuration. Driver selects the backend:
// libsql (default, local file or Turso remote) or redis.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	Path          string `mapstructure:"path" yaml:"path"`
	URL           string `mapstructure:"url" yaml:"url"`
	AuthToken     string `mapstructure:"auth_token" yaml:"auth_token"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// AniListConfig contains the transport endpoint and the request budget.
type AniListConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxPerMinute is the enforced request ceiling, not the advertised one.
	MaxPerMinute int           `mapstructure:"max_per_minute" yaml:"max_per_minute"`
	LowWaterMark int           `mapstructure:"low_water_mark" yaml:"low_water_mark"`
	Window       time.Duration `mapstructure:"window" yaml:"window"`
	HeaderOffset int           `mapstructure:"header_offset" yaml:"header_offset"`
	ResetBuffer  time.Duration `mapstructure:"reset_buffer" yaml:"reset_buffer"`

	ProbeURL string `mapstructure:"probe_url" yaml:"probe_url"`
}

// TierConfig sizes the candidate pool for one difficulty.
type TierConfig struct {
	Base      int `mapstructure:"base" yaml:"base"`
	Increment int `mapstructure:"increment" yaml:"increment"`
}

// QuizConfig contains round assembly settings.
type QuizConfig struct {
	MaxAttempts int                   `mapstructure:"max_attempts" yaml:"max_attempts"`
	YearFrom    int                   `mapstructure:"year_from" yaml:"year_from"`
	YearTo      int                   `mapstructure:"year_to" yaml:"year_to"`
	Tiers       map[string]TierConfig `mapstructure:"tiers" yaml:"tiers"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level: trace, debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Profile selects the logging complexity level: SIMPLE or STRUCTURED.
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// MetricsConfig contains metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DebugConfig contains debug and profiling configuration.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled" yaml:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled" yaml:"pprof_enabled"`
}
