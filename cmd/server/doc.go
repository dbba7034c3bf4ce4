// Package main is the entry point for the bundle server.
//
// The server loads one or more bundle manifests and serves their assets,
// keeping each bundle resident while references to it are held and sweeping
// idle bundles in the background.
//
// The server provides:
//   - REST API for loading and releasing assets
//   - Bundle status, force unload and sweeping
//   - Load monitoring records
//   - Prometheus metrics on /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -root /srv/bundles -manifest /srv/bundles/manifest.json
//
//	# Several manifests, earlier ones win
//	./server -manifest base.json,dlc.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
