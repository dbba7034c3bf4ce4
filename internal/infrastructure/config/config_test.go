package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Bundle config
	assert.Equal(t, "bundles", cfg.Bundles.Root)
	assert.Equal(t, []string{"bundles/manifest.json"}, cfg.Bundles.ManifestPaths)
	assert.Equal(t, 60*time.Second, cfg.Bundles.Expire)
	assert.Equal(t, 30*time.Second, cfg.Bundles.SweepInterval)
	assert.False(t, cfg.Bundles.UnloadContents)
	assert.Equal(t, "continue", cfg.Bundles.DependencyPolicy)
	assert.Equal(t, "reject", cfg.Bundles.Duplicates)

	// Remote config
	assert.Empty(t, cfg.Remote.URL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 3, cfg.Remote.Retries)
	assert.False(t, cfg.Remote.Prefetch)
	assert.Equal(t, 4, cfg.Remote.PrefetchWorkers)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	// Struct tag defaults and Default() must agree
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"BUNDLE_ROOT":              "/srv/bundles",
		"MANIFEST_PATH":            "/srv/dlc.yaml,/srv/base.json",
		"BUNDLE_EXPIRE":            "2m",
		"BUNDLE_SWEEP_INTERVAL":    "10s",
		"BUNDLE_UNLOAD_CONTENTS":   "true",
		"BUNDLE_DEPENDENCY_POLICY": "abort",
		"MANIFEST_DUPLICATES":      "last-write-wins",
		"BUNDLE_REMOTE_URL":        "https://cdn.example.com/bundles",
		"BUNDLE_REMOTE_RETRIES":    "5",
		"BUNDLE_PREFETCH":          "true",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_RPS":           "500",
		"RATE_LIMIT_BURST":         "1000",
		"RATE_LIMIT_ENABLED":       "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "/srv/bundles", cfg.Bundles.Root)
	assert.Equal(t, []string{"/srv/dlc.yaml", "/srv/base.json"}, cfg.Bundles.ManifestPaths)
	assert.Equal(t, 2*time.Minute, cfg.Bundles.Expire)
	assert.Equal(t, 10*time.Second, cfg.Bundles.SweepInterval)
	assert.True(t, cfg.Bundles.UnloadContents)
	assert.Equal(t, "abort", cfg.Bundles.DependencyPolicy)
	assert.Equal(t, "last-write-wins", cfg.Bundles.Duplicates)

	assert.Equal(t, "https://cdn.example.com/bundles", cfg.Remote.URL)
	assert.Equal(t, 5, cfg.Remote.Retries)
	assert.True(t, cfg.Remote.Prefetch)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("BUNDLE_EXPIRE", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Bundles.Expire)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Bundles.SweepInterval)
}

func TestLoadOrDefaultOnBadValue(t *testing.T) {
	t.Setenv("BUNDLE_EXPIRE", "soon")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 60*time.Second, cfg.Bundles.Expire)
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{
			name:     "default values",
			wantPort: "8000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port",
			port:     "9000",
			wantPort: "9000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port and host",
			port:     "3000",
			host:     "127.0.0.1",
			wantPort: "3000",
			wantHost: "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean environment
			os.Unsetenv("PORT")
			os.Unsetenv("HOST")

			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		rps         string
		burst       string
		enabled     string
		wantRPS     int
		wantBurst   int
		wantEnabled bool
	}{
		{
			name:        "default values",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: true,
		},
		{
			name:        "high limits",
			rps:         "1000",
			burst:       "2000",
			wantRPS:     1000,
			wantBurst:   2000,
			wantEnabled: true,
		},
		{
			name:        "disabled",
			enabled:     "false",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rps != "" {
				t.Setenv("RATE_LIMIT_RPS", tt.rps)
			}
			if tt.burst != "" {
				t.Setenv("RATE_LIMIT_BURST", tt.burst)
			}
			if tt.enabled != "" {
				t.Setenv("RATE_LIMIT_ENABLED", tt.enabled)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantRPS, cfg.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.wantBurst, cfg.RateLimit.Burst)
			assert.Equal(t, tt.wantEnabled, cfg.RateLimit.Enabled)
		})
	}
}
