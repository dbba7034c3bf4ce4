package monitor

import "go.uber.org/zap"

// LogObserver writes lifecycle events to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a logging observer.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.Named("bundles")}
}

func (l *LogObserver) LoadStarted(e LoadEvent) {
	l.logger.Debug("Bundle load started",
		zap.String("bundle", e.BundleName),
		zap.String("package", e.PackageName),
		zap.String("address", e.AssetAddress),
		zap.Bool("async", e.Async),
	)
}

func (l *LogObserver) LoadSucceeded(e LoadEvent) {
	l.logger.Info("Bundle loaded",
		zap.String("bundle", e.BundleName),
		zap.String("package", e.PackageName),
		zap.Duration("duration", e.Duration()),
		zap.Int64("bytes", e.ByteSize),
		zap.Bool("async", e.Async),
	)
}

func (l *LogObserver) LoadFailed(e LoadEvent) {
	l.logger.Error("Failed to load bundle",
		zap.String("bundle", e.BundleName),
		zap.String("package", e.PackageName),
		zap.String("address", e.AssetAddress),
		zap.String("error", e.Error),
	)
}

func (l *LogObserver) Unloaded(e UnloadEvent) {
	l.logger.Info("Bundle unloaded",
		zap.String("bundle", e.BundleName),
		zap.Bool("forced", e.Forced),
	)
}
