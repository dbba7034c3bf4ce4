package bundle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/manifest"
)

// LoadAsset resolves address, loads its bundle and every dependency in
// closure order, and returns the asset. Each bundle touched gets one
// reference; Release(address) gives them back.
func (c *Cache) LoadAsset(address string) (*Asset, error) {
	return c.loadAsset(context.Background(), address, false)
}

// LoadAssetContext is the asynchronous form of LoadAsset. Every acquisition
// is awaited before the next one starts.
func (c *Cache) LoadAssetContext(ctx context.Context, address string) (*Asset, error) {
	return c.loadAsset(ctx, address, true)
}

func (c *Cache) loadAsset(ctx context.Context, address string, async bool) (*Asset, error) {
	rec, err := c.manifest.ResolveByAddress(address)
	if err != nil {
		c.logger.Warn("Asset not found", zap.String("address", address))
		return nil, err
	}

	acquired, err := c.acquireDependencies(ctx, rec, async)
	if err != nil {
		return nil, err
	}

	entry, err := c.acquire(ctx, rec, address, async)
	if err != nil {
		c.rollback(acquired)
		return nil, err
	}
	entry.addCascade()

	path := c.manifest.AssetPath(rec, address)
	var asset *Asset
	if async {
		asset, err = entry.handle.LoadAssetContext(ctx, path)
	} else {
		asset, err = entry.handle.LoadAsset(path)
	}
	if err == nil && asset == nil {
		err = fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	if err != nil {
		// Bundle references stay: the bundles are resident either way.
		c.logger.Error("Failed to load asset from bundle",
			zap.String("address", address),
			zap.String("path", path),
			zap.String("bundle", rec.Name),
			zap.Error(err),
		)
		return nil, fmt.Errorf("asset %q in bundle %s: %w: %w", address, rec.Name, ErrAssetLookup, err)
	}

	entry.track(asset, c.now())
	return asset, nil
}

// acquireDependencies takes a reference on every bundle in rec's closure and
// returns the names it acquired, in order.
func (c *Cache) acquireDependencies(ctx context.Context, rec *manifest.BundleRecord, async bool) ([]string, error) {
	closure := c.manifest.ClosureOf(rec.Name)
	acquired := make([]string, 0, len(closure))

	for _, name := range closure {
		dep, err := c.manifest.ResolveByName(name)
		if err != nil {
			continue
		}
		if _, err := c.acquire(ctx, dep, "", async); err != nil {
			if ctx.Err() != nil || c.policy == DependencyAbort {
				c.rollback(acquired)
				return nil, fmt.Errorf("dependency %s of %s: %w", name, rec.Name, err)
			}
			c.logger.Warn("Dependency failed to load, continuing",
				zap.String("bundle", rec.Name),
				zap.String("dependency", name),
				zap.Error(err),
			)
			continue
		}
		acquired = append(acquired, name)
	}
	return acquired, nil
}

// rollback drops one reference from each named bundle, newest first.
func (c *Cache) rollback(names []string) {
	for i := len(names) - 1; i >= 0; i-- {
		c.releaseOne(names[i], false)
	}
}
