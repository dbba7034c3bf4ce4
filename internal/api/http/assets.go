package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

type addressRequest struct {
	Address        string `json:"address" binding:"required"`
	UnloadContents bool   `json:"unload_contents"`
}

// ListAssets lists known addresses, optionally filtered by a glob
func (h *Handlers) ListAssets(c *gin.Context) {
	pattern := c.Query("match")
	if pattern == "" {
		addresses := h.catalog.Addresses()
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"count":     len(addresses),
			"addresses": addresses,
		})
		return
	}

	addresses, err := h.catalog.Match(pattern)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     len(addresses),
		"addresses": addresses,
	})
}

// LoadAsset loads an asset and its dependencies, taking one reference
func (h *Handlers) LoadAsset(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	done := h.track("load")
	asset, err := h.catalog.LoadAssetContext(c.Request.Context(), req.Address)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": req.Address,
		"path":    asset.Path,
		"size":    asset.Len(),
	})
}

// ReleaseAsset gives back the references a load took
func (h *Handlers) ReleaseAsset(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	done := h.track("release")
	err := h.catalog.Release(req.Address, req.UnloadContents)
	done(err)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": req.Address,
	})
}

// AssetContent serves the raw bytes of an asset. The load is released once
// the response is written.
func (h *Handlers) AssetContent(c *gin.Context) {
	address := strings.TrimPrefix(c.Param("address"), "/")
	ctx := c.Request.Context()

	release := func() {
		if err := h.catalog.Release(address, false); err != nil {
			h.logger.Warn("Failed to release asset after serving", zap.String("address", address), zap.Error(err))
		}
	}

	done := h.track("content")
	asset, err := h.catalog.LoadAssetContext(ctx, address)
	done(err)
	if err != nil {
		// The bundles stay referenced when only the asset lookup failed.
		if errors.Is(err, bundle.ErrAssetLookup) {
			release()
		}
		h.fail(c, err)
		return
	}
	defer release()

	if cache, err := h.catalog.Resolve(address); err == nil {
		if rec, err := cache.Manifest().ResolveByAddress(address); err == nil {
			c.Header("X-Bundle", rec.Name)
		}
	}

	data := asset.Bytes()
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}
