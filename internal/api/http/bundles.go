package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListBundles returns the status of every resident bundle
func (h *Handlers) ListBundles(c *gin.Context) {
	status := h.catalog.Status()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(status),
		"bundles": status,
	})
}

// GetBundle returns one resident bundle
func (h *Handlers) GetBundle(c *gin.Context) {
	name := c.Param("name")
	status, ok := h.catalog.StatusOf(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "bundle not loaded: " + name,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bundle":  status,
	})
}

// UnloadBundle force unloads a bundle regardless of its reference count
func (h *Handlers) UnloadBundle(c *gin.Context) {
	name := c.Param("name")
	unload := c.Query("unload_contents") == "true"

	done := h.track("force_unload")
	ok := h.catalog.ForceUnload(name, unload)
	done(nil)

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "bundle not loaded: " + name,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bundle":  name,
	})
}

// Sweep evicts unused bundles
func (h *Handlers) Sweep(c *gin.Context) {
	var req struct {
		Immediate      bool `json:"immediate"`
		UnloadContents bool `json:"unload_contents"`
	}
	// An empty body means a non-immediate sweep.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request: " + err.Error(),
			})
			return
		}
	}

	done := h.track("sweep")
	evicted := h.catalog.Sweep(req.Immediate, req.UnloadContents)
	done(nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"evicted": evicted,
	})
}
