package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Records returns the load records of the monitor session
func (h *Handlers) Records(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "monitor disabled"})
		return
	}
	data, err := h.recorder.MarshalJSON()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Summary returns the monitor session totals
func (h *Handlers) Summary(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "monitor disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": h.recorder.Summary(),
	})
}

// StartRecording starts a fresh monitor session
func (h *Handlers) StartRecording(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "monitor disabled"})
		return
	}
	h.recorder.Start()
	c.JSON(http.StatusOK, gin.H{"success": true, "recording": true})
}

// StopRecording stops the monitor session, keeping its records
func (h *Handlers) StopRecording(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "monitor disabled"})
		return
	}
	h.recorder.Stop()
	c.JSON(http.StatusOK, gin.H{"success": true, "recording": false})
}

// MetricsJSON returns a JSON summary of the service counters
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "metrics disabled"})
		return
	}
	snap := h.metrics.Snapshot()

	var avgLatencyMs, errorRate float64
	if snap.RequestCount > 0 {
		avgLatencyMs = snap.TotalDuration / float64(snap.RequestCount) * 1000
	}
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now(),
		"counters":  snap,
		"summary": gin.H{
			"total_requests":     snap.TotalRequests,
			"average_latency_ms": avgLatencyMs,
			"error_rate":         errorRate,
			"uptime_seconds":     time.Since(h.started).Seconds(),
		},
	})
}
