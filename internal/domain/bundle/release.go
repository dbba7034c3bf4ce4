package bundle

import (
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/monitor"
)

// Release gives back the references LoadAsset(address) took: one on the
// owning bundle and one on every bundle in its closure. Bundles that reach
// zero are freed, dependencies first and the owning bundle last. Releasing an
// address whose bundle is not resident does nothing; ForceUnload has already
// returned the closure references in that case.
func (c *Cache) Release(address string, unloadContents bool) error {
	rec, err := c.manifest.ResolveByAddress(address)
	if err != nil {
		return err
	}
	closure := c.manifest.ClosureOf(rec.Name)

	c.mu.Lock()
	target, ok := c.loaded[rec.Name]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("Release of bundle that is not loaded", zap.String("bundle", rec.Name))
		return nil
	}

	target.dropCascade()
	freed := c.dropClosureLocked(closure, 1)
	if target.drop() == 0 {
		delete(c.loaded, target.name)
		freed = append(freed, target)
	}
	c.mu.Unlock()

	c.free(freed, unloadContents, false)
	return nil
}

// ReleaseBundle drops a single reference from the named bundle, freeing it
// at zero. It reports whether the bundle was resident.
func (c *Cache) ReleaseBundle(name string, unloadContents bool) bool {
	return c.releaseOne(name, unloadContents)
}

func (c *Cache) releaseOne(name string, unloadContents bool) bool {
	c.mu.Lock()
	e, ok := c.loaded[name]
	if !ok {
		c.mu.Unlock()
		return false
	}
	var freed []*Entry
	if e.drop() == 0 {
		delete(c.loaded, name)
		freed = append(freed, e)
	}
	c.mu.Unlock()

	c.free(freed, unloadContents, false)
	return true
}

// SweepUnused evicts resident bundles that have no live assets and either
// immediate is set or they have been idle past the expiry. It returns the
// number evicted.
//
// An immediate sweep does not evict every eligible entry: bundles in the
// closure of a bundle that stays resident are kept as well, so a retained
// bundle never outlives one of its dependencies.
func (c *Cache) SweepUnused(immediate, unloadContents bool) int {
	now := c.now()

	c.mu.Lock()
	keep := make(map[string]bool, len(c.loaded))
	var retained []string
	var candidates []*Entry
	for name, e := range c.loaded {
		if e.AliveAssets() > 0 || (!immediate && now.Sub(e.LastAccess()) <= c.expiry) {
			retained = append(retained, name)
			continue
		}
		candidates = append(candidates, e)
	}
	for _, name := range retained {
		keep[name] = true
		for _, dep := range c.manifest.ClosureOf(name) {
			keep[dep] = true
		}
	}

	var victims []*Entry
	for _, e := range candidates {
		if keep[e.name] {
			continue
		}
		delete(c.loaded, e.name)
		victims = append(victims, e)
	}
	c.mu.Unlock()

	sort.Slice(victims, func(i, j int) bool { return victims[i].name < victims[j].name })
	c.free(victims, unloadContents, true)

	if len(victims) > 0 {
		c.logger.Info("Swept unused bundles",
			zap.Int("count", len(victims)),
			zap.Bool("immediate", immediate),
		)
	}
	return len(victims)
}

// dropClosureLocked takes n references from every resident bundle in
// closure, newest dependency first, and unlinks those reaching zero.
// c.mu must be held.
func (c *Cache) dropClosureLocked(closure []string, n int) []*Entry {
	var freed []*Entry
	for i := len(closure) - 1; i >= 0; i-- {
		dep, ok := c.loaded[closure[i]]
		if !ok {
			continue
		}
		left := dep.RefCount()
		for j := 0; j < n && left > 0; j++ {
			left = dep.drop()
		}
		if left == 0 {
			delete(c.loaded, dep.name)
			freed = append(freed, dep)
		}
	}
	return freed
}

// ForceUnload frees the named bundle regardless of its reference count. The
// dependency references its LoadAsset holders took are given back, so a
// later Release of its addresses has nothing left to return. It reports
// whether the bundle was resident.
func (c *Cache) ForceUnload(name string, unloadContents bool) bool {
	c.mu.Lock()
	e, ok := c.loaded[name]
	var orphans []*Entry
	if ok {
		delete(c.loaded, name)
		if n := e.takeCascades(); n > 0 {
			orphans = c.dropClosureLocked(c.manifest.ClosureOf(name), n)
		}
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.logger.Warn("Force unloading bundle",
		zap.String("bundle", name),
		zap.Int("ref_count", e.RefCount()),
		zap.Int("dependencies_freed", len(orphans)),
	)
	c.free([]*Entry{e}, unloadContents, true)
	c.free(orphans, unloadContents, false)
	return true
}

// UnloadAll frees every resident bundle. Loads still in flight complete
// normally and become resident afterwards.
func (c *Cache) UnloadAll(unloadContents bool) {
	c.mu.Lock()
	all := make([]*Entry, 0, len(c.loaded))
	for _, e := range c.loaded {
		all = append(all, e)
	}
	clear(c.loaded)
	c.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].name < all[j].name })
	c.free(all, unloadContents, true)
	c.logger.Info("Unloaded all bundles", zap.Int("count", len(all)))
}

// free releases handles outside the cache lock and emits unload events.
func (c *Cache) free(entries []*Entry, unloadContents, forced bool) {
	for _, e := range entries {
		e.release(unloadContents)
		c.hub.Unloaded(monitor.UnloadEvent{
			BundleName:  e.name,
			PackageName: e.pkg,
			Time:        c.now(),
			Forced:      forced,
		})
		c.logger.Debug("Bundle unloaded",
			zap.String("bundle", e.name),
			zap.Bool("forced", forced),
		)
	}
}
