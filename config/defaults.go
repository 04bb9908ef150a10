package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "sigwire",
			Environment: "development",
			Debug:       false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bus: BusConfig{
			Type:      "memory",
			KeyPrefix: "sigwire:stream:",
			Redis: RedisConfig{
				Address:  "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Cursor: CursorConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:       "./data/cursors",
				SyncWrites: true,
			},
		},
		Send: SendConfig{
			RateLimit: 0,
			RateBurst: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			SampleRate: 1.0,
		},
	}
}
