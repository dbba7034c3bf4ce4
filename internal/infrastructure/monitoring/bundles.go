package monitoring

import (
	"strconv"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/monitor"
)

// BundleObserver feeds bundle cache events into Metrics.
type BundleObserver struct {
	metrics *Metrics
}

// NewBundleObserver returns an observer for bundle.WithObserver.
func NewBundleObserver(metrics *Metrics) *BundleObserver {
	return &BundleObserver{metrics: metrics}
}

var _ monitor.Observer = (*BundleObserver)(nil)

func mode(async bool) string {
	if async {
		return "async"
	}
	return "sync"
}

func (o *BundleObserver) LoadStarted(monitor.LoadEvent) {}

func (o *BundleObserver) LoadSucceeded(e monitor.LoadEvent) {
	m := o.metrics
	m.BundleLoads.WithLabelValues(e.PackageName, mode(e.Async), "success").Inc()
	m.BundleLoadDuration.WithLabelValues(e.PackageName, mode(e.Async)).Observe(e.Duration().Seconds())
	m.BundleBytes.WithLabelValues(e.PackageName).Add(float64(e.ByteSize))
	m.BundlesLoaded.WithLabelValues(e.PackageName).Inc()

	m.mu.Lock()
	m.snapshot.BundleLoads++
	m.snapshot.LoadedBundles++
	m.mu.Unlock()
}

func (o *BundleObserver) LoadFailed(e monitor.LoadEvent) {
	m := o.metrics
	m.BundleLoads.WithLabelValues(e.PackageName, mode(e.Async), "error").Inc()
	m.BundleLoadDuration.WithLabelValues(e.PackageName, mode(e.Async)).Observe(e.Duration().Seconds())

	m.mu.Lock()
	m.snapshot.LoadFailures++
	m.mu.Unlock()
}

func (o *BundleObserver) Unloaded(e monitor.UnloadEvent) {
	m := o.metrics
	m.BundleUnloads.WithLabelValues(e.PackageName, strconv.FormatBool(e.Forced)).Inc()
	m.BundlesLoaded.WithLabelValues(e.PackageName).Dec()

	m.mu.Lock()
	m.snapshot.Unloads++
	m.snapshot.LoadedBundles--
	m.mu.Unlock()
}
