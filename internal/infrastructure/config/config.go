package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Bundles   BundleConfig
	Remote    RemoteConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BundleConfig holds bundle cache configuration.
type BundleConfig struct {
	Root             string        `envconfig:"BUNDLE_ROOT" default:"bundles"`
	ManifestPaths    []string      `envconfig:"MANIFEST_PATH" default:"bundles/manifest.json"`
	Expire           time.Duration `envconfig:"BUNDLE_EXPIRE" default:"60s"`
	SweepInterval    time.Duration `envconfig:"BUNDLE_SWEEP_INTERVAL" default:"30s"`
	UnloadContents   bool          `envconfig:"BUNDLE_UNLOAD_CONTENTS" default:"false"`
	DependencyPolicy string        `envconfig:"BUNDLE_DEPENDENCY_POLICY" default:"continue"`
	Duplicates       string        `envconfig:"MANIFEST_DUPLICATES" default:"reject"`
}

// RemoteConfig holds the optional bundle origin. An empty URL keeps every
// bundle local.
type RemoteConfig struct {
	URL             string        `envconfig:"BUNDLE_REMOTE_URL"`
	Timeout         time.Duration `envconfig:"BUNDLE_REMOTE_TIMEOUT" default:"30s"`
	Retries         int           `envconfig:"BUNDLE_REMOTE_RETRIES" default:"3"`
	Cooldown        time.Duration `envconfig:"BUNDLE_REMOTE_COOLDOWN" default:"30s"`
	Prefetch        bool          `envconfig:"BUNDLE_PREFETCH" default:"false"`
	PrefetchWorkers int           `envconfig:"BUNDLE_PREFETCH_WORKERS" default:"4"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Bundles: BundleConfig{
			Root:             "bundles",
			ManifestPaths:    []string{"bundles/manifest.json"},
			Expire:           60 * time.Second,
			SweepInterval:    30 * time.Second,
			UnloadContents:   false,
			DependencyPolicy: "continue",
			Duplicates:       "reject",
		},
		Remote: RemoteConfig{
			Timeout:         30 * time.Second,
			Retries:         3,
			Cooldown:        30 * time.Second,
			PrefetchWorkers: 4,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
