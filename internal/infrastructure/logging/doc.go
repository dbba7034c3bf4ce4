// Package logging builds the service's root zap logger.
//
// Production mode writes JSON; development mode writes colored console lines
// with stack traces. The level is atomic: SetLevel, or PUT /log/level through
// LevelHandler, changes it for every child logger at once.
//
// Domain packages take a plain *zap.Logger; Component hands each one a named
// child so cache, archive and http lines can be told apart.
//
// Example Usage:
//
//	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	cache := bundle.NewCache(m, providers, bundle.WithLogger(logger.Component("cache")))
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
