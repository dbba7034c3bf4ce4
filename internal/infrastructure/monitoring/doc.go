/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the bundle
service, tracking HTTP requests, physical bundle loads and unloads, and
service-level operations such as sweeps.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Feed bundle cache events
	cache := bundle.NewCache(m, providers, bundle.WithObserver(monitoring.NewBundleObserver(metrics)))

	// Time operations
	timer := monitoring.NewTimer(metrics, "cache", "sweep")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
