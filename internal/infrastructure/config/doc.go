// Package config provides 12-factor configuration management for the bundle service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Bundles: bundle root, manifests, expiry and sweep settings
//   - Remote: optional HTTP origin that missing bundle files are fetched from
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Serving %s on %s:%s\n", cfg.Bundles.Root, cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - BUNDLE_ROOT, MANIFEST_PATH (comma separated), BUNDLE_EXPIRE,
//     BUNDLE_SWEEP_INTERVAL, BUNDLE_UNLOAD_CONTENTS, BUNDLE_DEPENDENCY_POLICY,
//     MANIFEST_DUPLICATES
//   - BUNDLE_REMOTE_URL, BUNDLE_REMOTE_TIMEOUT, BUNDLE_REMOTE_RETRIES,
//     BUNDLE_REMOTE_COOLDOWN, BUNDLE_PREFETCH, BUNDLE_PREFETCH_WORKERS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
