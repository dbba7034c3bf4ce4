package bundle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// EntryStatus is a point-in-time view of a resident bundle.
type EntryStatus struct {
	Name        string    `json:"name"`
	Package     string    `json:"package"`
	RefCount    int       `json:"ref_count"`
	AliveAssets int       `json:"alive_assets"`
	Size        int64     `json:"size"`
	LastAccess  time.Time `json:"last_access"`
	Idle        string    `json:"idle"`
}

func (s EntryStatus) String() string {
	return fmt.Sprintf("%s [%s] refs=%d assets=%d size=%s last used %s",
		s.Name, s.Package, s.RefCount, s.AliveAssets, humanize.IBytes(uint64(max(s.Size, 0))), s.Idle)
}

// BundlePaths maps every bundle in the manifest to the file it is loaded from,
// whether resident or not.
func (c *Cache) BundlePaths() map[string]string {
	names := c.manifest.Bundles()
	out := make(map[string]string, len(names))
	for _, name := range names {
		rec, err := c.manifest.ResolveByName(name)
		if err != nil {
			continue
		}
		out[name] = c.pathFor(rec.PackageName, rec.Name)
	}
	return out
}

// RefCount returns the reference count of the named bundle, or zero when it
// is not resident.
func (c *Cache) RefCount(name string) int {
	if e := c.entry(name); e != nil {
		return e.RefCount()
	}
	return 0
}

// HasAliveAssets reports whether any asset loaded from the bundle is still
// reachable.
func (c *Cache) HasAliveAssets(name string) bool {
	return c.AliveAssets(name) > 0
}

// AliveAssets returns the number of reachable assets loaded from the bundle.
func (c *Cache) AliveAssets(name string) int {
	if e := c.entry(name); e != nil {
		return e.AliveAssets()
	}
	return 0
}

// IsLoaded reports whether the bundle is resident.
func (c *Cache) IsLoaded(name string) bool {
	return c.entry(name) != nil
}

// LoadedNames returns the resident bundle names, sorted.
func (c *Cache) LoadedNames() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.loaded))
	for name := range c.loaded {
		names = append(names, name)
	}
	c.mu.Unlock()

	sort.Strings(names)
	return names
}

// Len returns the number of resident bundles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loaded)
}

// Status describes every resident bundle, sorted by name.
func (c *Cache) Status() []EntryStatus {
	c.mu.Lock()
	entries := make([]*Entry, 0, len(c.loaded))
	for _, e := range c.loaded {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	out := make([]EntryStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, c.describe(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StatusOf describes one resident bundle.
func (c *Cache) StatusOf(name string) (EntryStatus, bool) {
	e := c.entry(name)
	if e == nil {
		return EntryStatus{}, false
	}
	return c.describe(e), true
}

func (c *Cache) describe(e *Entry) EntryStatus {
	last := e.LastAccess()
	return EntryStatus{
		Name:        e.name,
		Package:     e.pkg,
		RefCount:    e.RefCount(),
		AliveAssets: e.AliveAssets(),
		Size:        e.handle.Size(),
		LastAccess:  last,
		Idle:        humanize.RelTime(last, c.now(), "ago", "from now"),
	}
}

func (c *Cache) entry(name string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded[name]
}

// RunSweeper runs a non-immediate SweepUnused every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration, unloadContents bool) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.SweepUnused(false, unloadContents)
		}
	}
}
