package bundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/manifest"
)

var (
	// ErrNotFound is returned when an address or bundle is absent from the manifest.
	ErrNotFound = manifest.ErrNotFound
	// ErrLoadFailed is returned when the loader produced no bundle handle.
	ErrLoadFailed = errors.New("bundle load failed")
	// ErrAssetLookup wraps every failure to read an asset out of a bundle that
	// was loaded. The bundle references taken by the call are still held.
	ErrAssetLookup = errors.New("asset lookup failed")
	// ErrAssetNotFound is returned when a loaded bundle has no asset at the path.
	// It always arrives wrapped together with ErrAssetLookup.
	ErrAssetNotFound = errors.New("asset not found in bundle")
	// ErrNoLoader is returned when no loader is registered for a package.
	ErrNoLoader = errors.New("no loader for package")
)

// Bundle is an opened bundle handle produced by a Loader.
type Bundle interface {
	// LoadAsset returns the asset stored at path.
	LoadAsset(path string) (*Asset, error)
	// LoadAssetContext is the cancellable form of LoadAsset.
	LoadAssetContext(ctx context.Context, path string) (*Asset, error)
	// Release frees the handle. With unloadContents every asset handed out
	// by this bundle is unloaded as well.
	Release(unloadContents bool)
	// Size is the on-disk size in bytes.
	Size() int64
}

// Loader opens bundles. It is the decrypt/decompress provider of a package.
type Loader interface {
	Load(path string, checksum uint32) (Bundle, error)
	LoadContext(ctx context.Context, path string, checksum uint32) (Bundle, error)
}

// Providers maps package names to loaders. The empty name is the fallback.
type Providers map[string]Loader

// For returns the loader for pkg.
func (p Providers) For(pkg string) (Loader, error) {
	if l, ok := p[pkg]; ok && l != nil {
		return l, nil
	}
	if l, ok := p[""]; ok && l != nil {
		return l, nil
	}
	return nil, fmt.Errorf("%w %q", ErrNoLoader, pkg)
}

// Asset is a handle to an object loaded from a bundle. The cache only keeps
// weak references to assets; callers own their lifetime.
type Asset struct {
	Path string

	mu       sync.RWMutex
	data     []byte
	unloaded bool
}

// NewAsset creates an asset handle over data.
func NewAsset(path string, data []byte) *Asset {
	return &Asset{Path: path, data: data}
}

// Bytes returns the asset contents, or nil once unloaded.
func (a *Asset) Bytes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// Len returns the size of the contents.
func (a *Asset) Len() int {
	return len(a.Bytes())
}

// Unload drops the contents. It is called when the owning bundle is released
// with unloadContents set.
func (a *Asset) Unload() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.unloaded = true
}

// Unloaded reports whether Unload was called.
func (a *Asset) Unloaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.unloaded
}
