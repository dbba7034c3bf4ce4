// Package middleware provides HTTP middleware for the bundle service.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket with idle eviction, Retry-After and exempt probe paths
//   - RequestID: X-Request-ID propagation
//   - RequestLogger: One zap line per request
//   - Recovery: Panic recovery with a JSON 500
//
// Example Usage:
//
//	router.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
