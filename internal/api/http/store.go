package http

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/providers/archive"
)

// Prefetcher downloads bundle files that are missing on disk.
type Prefetcher interface {
	Prefetch(ctx context.Context, paths []string, workers int) (int, error)
}

// WithStore enables the bundle store routes for files under root. Files in
// ignore, such as manifests, are never reported as orphans.
func (h *Handlers) WithStore(root string, ignore ...string) *Handlers {
	h.root = root
	h.ignore = ignore
	return h
}

// WithPrefetcher enables POST /store/prefetch.
func (h *Handlers) WithPrefetcher(p Prefetcher) *Handlers {
	h.prefetcher = p
	return h
}

func (h *Handlers) storeDisabled(c *gin.Context) bool {
	if h.root == "" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "store disabled"})
		return true
	}
	return false
}

// Inventory reports present, missing and orphaned bundle files
func (h *Handlers) Inventory(c *gin.Context) {
	if h.storeDisabled(c) {
		return
	}
	inv, err := archive.Scan(c.Request.Context(), h.root, h.catalog.BundlePaths(), h.ignore...)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"inventory": inv,
	})
}

// Prune deletes files under the root that no manifest references
func (h *Handlers) Prune(c *gin.Context) {
	if h.storeDisabled(c) {
		return
	}
	done := h.track("prune")
	inv, err := archive.Scan(c.Request.Context(), h.root, h.catalog.BundlePaths(), h.ignore...)
	if err != nil {
		done(err)
		h.fail(c, err)
		return
	}
	removed, err := archive.Prune(inv)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"removed": removed,
	})
}

// Prefetch downloads every missing bundle file from the origin
func (h *Handlers) Prefetch(c *gin.Context) {
	if h.prefetcher == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no remote origin configured"})
		return
	}
	var req struct {
		Workers int `json:"workers"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request: " + err.Error(),
			})
			return
		}
	}

	all := h.catalog.BundlePaths()
	paths := make([]string, 0, len(all))
	for _, p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	done := h.track("prefetch")
	fetched, err := h.prefetcher.Prefetch(c.Request.Context(), paths, req.Workers)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"fetched": fetched,
	})
}
