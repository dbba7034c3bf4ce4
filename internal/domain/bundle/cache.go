package bundle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/monitor"
)

// DefaultExpiry is how long an unused bundle stays resident before a
// non-immediate sweep may evict it.
const DefaultExpiry = 60 * time.Second

// DependencyPolicy decides what a composite load does when a dependency
// bundle fails to load.
type DependencyPolicy int

const (
	// DependencyContinue logs the failure and still loads the target.
	DependencyContinue DependencyPolicy = iota
	// DependencyAbort fails the whole load on the first dependency failure.
	DependencyAbort
)

// String returns the config name of the policy
func (p DependencyPolicy) String() string {
	switch p {
	case DependencyContinue:
		return "continue"
	case DependencyAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// ParseDependencyPolicy parses the config name of a policy.
func ParseDependencyPolicy(s string) (DependencyPolicy, error) {
	switch s {
	case "", "continue":
		return DependencyContinue, nil
	case "abort":
		return DependencyAbort, nil
	default:
		return DependencyContinue, fmt.Errorf("unknown dependency policy %q", s)
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithExpiry sets the idle time after which a non-immediate sweep evicts.
func WithExpiry(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.expiry = d
		}
	}
}

// WithDependencyPolicy sets the dependency failure policy.
func WithDependencyPolicy(p DependencyPolicy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

// WithRoot resolves bundle files as root/<package>/<bundle>.
func WithRoot(root string) Option {
	return func(c *Cache) {
		c.pathFor = func(pkg, name string) string {
			return filepath.Join(root, pkg, name)
		}
	}
}

// WithPathFunc sets a custom bundle path resolver.
func WithPathFunc(fn func(pkg, name string) string) Option {
	return func(c *Cache) {
		if fn != nil {
			c.pathFor = fn
		}
	}
}

// WithObserver subscribes o to the cache's event hub.
func WithObserver(o monitor.Observer) Option {
	return func(c *Cache) {
		c.hub.Subscribe(o)
	}
}

type inflight struct {
	done     chan struct{}
	err      error
	canceled bool
}

// Cache loads bundles on demand, shares them between callers by reference
// count, coalesces concurrent loads of the same bundle and frees bundles once
// nothing references them.
type Cache struct {
	manifest  *manifest.Manifest
	providers Providers
	hub       *monitor.Hub
	logger    *zap.Logger
	now       func() time.Time
	expiry    time.Duration
	policy    DependencyPolicy
	pathFor   func(pkg, name string) string

	mu      sync.Mutex
	loaded  map[string]*Entry    // Protected by mu
	pending map[string]*inflight // Protected by mu
}

// NewCache creates a cache over m that opens bundles through providers.
func NewCache(m *manifest.Manifest, providers Providers, opts ...Option) *Cache {
	c := &Cache{
		manifest:  m,
		providers: providers,
		hub:       monitor.NewHub(),
		logger:    zap.NewNop(),
		now:       time.Now,
		expiry:    DefaultExpiry,
		policy:    DependencyContinue,
		pathFor:   func(pkg, name string) string { return filepath.Join(pkg, name) },
		loaded:    make(map[string]*Entry),
		pending:   make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Manifest returns the manifest the cache resolves against.
func (c *Cache) Manifest() *manifest.Manifest {
	return c.manifest
}

// Subscribe adds an observer for load and unload events.
func (c *Cache) Subscribe(o monitor.Observer) (unsubscribe func()) {
	return c.hub.Subscribe(o)
}

// Contains reports whether the manifest knows address.
func (c *Cache) Contains(address string) bool {
	return c.manifest.Contains(address)
}

// Acquire returns the entry for rec, loading it synchronously if needed.
// Each successful call takes one reference.
func (c *Cache) Acquire(rec *manifest.BundleRecord) (*Entry, error) {
	return c.acquire(context.Background(), rec, "", false)
}

// AcquireContext is the asynchronous form of Acquire. Concurrent calls for a
// bundle that is not yet resident share a single physical load.
func (c *Cache) AcquireContext(ctx context.Context, rec *manifest.BundleRecord) (*Entry, error) {
	return c.acquire(ctx, rec, "", true)
}

func (c *Cache) acquire(ctx context.Context, rec *manifest.BundleRecord, address string, async bool) (*Entry, error) {
	for {
		c.mu.Lock()
		if e, ok := c.loaded[rec.Name]; ok {
			e.retain(c.now())
			c.mu.Unlock()
			return e, nil
		}

		fl, waiting := c.pending[rec.Name]
		if !waiting {
			fl = &inflight{done: make(chan struct{})}
			c.pending[rec.Name] = fl
			c.mu.Unlock()
			return c.load(ctx, rec, address, async, fl)
		}
		c.mu.Unlock()

		select {
		case <-fl.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if fl.err != nil {
			// The loading caller gave up; ours may still want the bundle.
			if fl.canceled && ctx.Err() == nil {
				continue
			}
			return nil, fl.err
		}
		// Loaded: take our reference on the next pass.
	}
}

// load performs the physical load for rec. fl is always resolved and removed
// from pending, whatever the outcome.
func (c *Cache) load(ctx context.Context, rec *manifest.BundleRecord, address string, async bool, fl *inflight) (entry *Entry, err error) {
	defer func() {
		if entry == nil && err == nil {
			err = fmt.Errorf("%w: %s: loader panicked", ErrLoadFailed, rec.Name)
		}
		c.mu.Lock()
		delete(c.pending, rec.Name)
		fl.err = err
		fl.canceled = ctx.Err() != nil
		c.mu.Unlock()
		close(fl.done)
	}()

	event := monitor.LoadEvent{
		BundleName:   rec.Name,
		PackageName:  rec.PackageName,
		AssetAddress: address,
		AssetPath:    c.manifest.AssetPath(rec, address),
		Dependencies: rec.Depends,
		Async:        async,
		StartTime:    c.now(),
	}
	c.hub.LoadStarted(event)

	path := c.pathFor(rec.PackageName, rec.Name)
	handle, err := c.open(ctx, rec, path, async)
	event.EndTime = c.now()
	if err != nil {
		event.Error = fmt.Sprintf("failed to load bundle from path %s: %v", path, err)
		c.hub.LoadFailed(event)
		c.logger.Error("Failed to load bundle",
			zap.String("bundle", rec.Name),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, rec.Name, err)
	}

	entry = newEntry(rec.Name, rec.PackageName, handle, event.EndTime)
	c.mu.Lock()
	c.loaded[rec.Name] = entry
	c.mu.Unlock()

	event.ByteSize = handle.Size()
	c.hub.LoadSucceeded(event)
	return entry, nil
}

func (c *Cache) open(ctx context.Context, rec *manifest.BundleRecord, path string, async bool) (Bundle, error) {
	loader, err := c.providers.For(rec.PackageName)
	if err != nil {
		return nil, err
	}

	var handle Bundle
	if async {
		handle, err = loader.LoadContext(ctx, path, rec.CRC)
	} else {
		handle, err = loader.Load(path, rec.CRC)
	}
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, errors.New("loader returned no bundle")
	}
	return handle, nil
}
