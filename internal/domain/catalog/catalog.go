// Package catalog chains several bundle caches, one per manifest, and falls
// through to the next cache when an address is unknown.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

// Catalog resolves addresses across caches in registration order.
type Catalog struct {
	caches []*bundle.Cache
}

// New creates a catalog over caches. Earlier caches win.
func New(caches ...*bundle.Cache) *Catalog {
	return &Catalog{caches: caches}
}

// Caches returns the caches in lookup order.
func (c *Catalog) Caches() []*bundle.Cache {
	return c.caches
}

// Resolve returns the first cache whose manifest knows address.
func (c *Catalog) Resolve(address string) (*bundle.Cache, error) {
	for _, cache := range c.caches {
		if cache.Contains(address) {
			return cache, nil
		}
	}
	return nil, fmt.Errorf("%w: address %q", bundle.ErrNotFound, address)
}

// LoadAsset loads address from the first cache that knows it.
func (c *Catalog) LoadAsset(address string) (*bundle.Asset, error) {
	return c.each(address, func(cache *bundle.Cache) (*bundle.Asset, error) {
		return cache.LoadAsset(address)
	})
}

// LoadAssetContext is the asynchronous form of LoadAsset.
func (c *Catalog) LoadAssetContext(ctx context.Context, address string) (*bundle.Asset, error) {
	return c.each(address, func(cache *bundle.Cache) (*bundle.Asset, error) {
		return cache.LoadAssetContext(ctx, address)
	})
}

// Release releases address in the first cache that knows it.
func (c *Catalog) Release(address string, unloadContents bool) error {
	_, err := c.each(address, func(cache *bundle.Cache) (*bundle.Asset, error) {
		return nil, cache.Release(address, unloadContents)
	})
	return err
}

// each tries fn against every cache until one does not report NotFound.
func (c *Catalog) each(address string, fn func(*bundle.Cache) (*bundle.Asset, error)) (*bundle.Asset, error) {
	for _, cache := range c.caches {
		asset, err := fn(cache)
		if errors.Is(err, bundle.ErrNotFound) {
			continue
		}
		return asset, err
	}
	return nil, fmt.Errorf("%w: address %q", bundle.ErrNotFound, address)
}

// Sweep sweeps every cache and returns the total evicted.
func (c *Catalog) Sweep(immediate, unloadContents bool) int {
	total := 0
	for _, cache := range c.caches {
		total += cache.SweepUnused(immediate, unloadContents)
	}
	return total
}

// UnloadAll unloads every cache.
func (c *Catalog) UnloadAll(unloadContents bool) {
	for _, cache := range c.caches {
		cache.UnloadAll(unloadContents)
	}
}

// ForceUnload force unloads the named bundle from every cache holding it.
func (c *Catalog) ForceUnload(name string, unloadContents bool) bool {
	found := false
	for _, cache := range c.caches {
		if cache.ForceUnload(name, unloadContents) {
			found = true
		}
	}
	return found
}

// Status merges the status of every cache, sorted by name.
func (c *Catalog) Status() []bundle.EntryStatus {
	var out []bundle.EntryStatus
	for _, cache := range c.caches {
		out = append(out, cache.Status()...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StatusOf returns the status of the named bundle from the first cache
// holding it.
func (c *Catalog) StatusOf(name string) (bundle.EntryStatus, bool) {
	for _, cache := range c.caches {
		if s, ok := cache.StatusOf(name); ok {
			return s, true
		}
	}
	return bundle.EntryStatus{}, false
}

// BundlePaths merges the bundle file paths of every cache. Earlier caches
// win on name clashes.
func (c *Catalog) BundlePaths() map[string]string {
	out := make(map[string]string)
	for _, cache := range c.caches {
		for name, p := range cache.BundlePaths() {
			if _, ok := out[name]; !ok {
				out[name] = p
			}
		}
	}
	return out
}

// Addresses lists the addresses of every manifest, sorted and deduplicated.
func (c *Catalog) Addresses() []string {
	out, _ := c.collect(func(cache *bundle.Cache) ([]string, error) {
		return cache.Manifest().Addresses(), nil
	})
	return out
}

// Match lists addresses matching a doublestar glob across every manifest.
func (c *Catalog) Match(pattern string) ([]string, error) {
	return c.collect(func(cache *bundle.Cache) ([]string, error) {
		return cache.Manifest().Match(pattern)
	})
}

func (c *Catalog) collect(fn func(*bundle.Cache) ([]string, error)) ([]string, error) {
	seen := make(map[string]struct{})
	out := []string{}
	for _, cache := range c.caches {
		names, err := fn(cache)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
