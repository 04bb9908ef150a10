// Package config provides configuration management for Sigwire.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Sigwire.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Bus is the stream bus configuration.
	Bus BusConfig `mapstructure:"bus"`

	// Cursor is the cursor store configuration.
	Cursor CursorConfig `mapstructure:"cursor"`

	// Send is the signal publishing configuration.
	Send SendConfig `mapstructure:"send"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// BusConfig holds stream bus settings.
type BusConfig struct {
	// Type selects the bus backend (memory, redis).
	Type string `mapstructure:"type" validate:"oneof=memory redis"`

	// KeyPrefix namespaces stream keys in the external store.
	KeyPrefix string `mapstructure:"key_prefix"`

	// Redis is the Redis connection configuration.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`
}

// CursorConfig holds cursor store settings.
type CursorConfig struct {
	// Type selects the cursor store backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the Badger-backed store configuration.
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// SendConfig holds signal publishing settings.
type SendConfig struct {
	// RateLimit caps sends per second. Zero disables the limiter.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// RateBurst is the limiter burst size.
	RateBurst int `mapstructure:"rate_burst" validate:"min=0"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the tracing exporter (otlp).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the export timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	return ValidateWithDetails(c)
}

// String renders a redacted one-line summary for logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"app=%s env=%s bus=%s cursor=%s metrics=%t tracing=%t",
		c.App.Name, c.App.Environment, c.Bus.Type, c.Cursor.Type,
		c.Metrics.Enabled, c.Tracing.Enabled,
	)
}
