package archive

import (
	"context"
	"errors"
	"sort"
	"sync"
	"weak"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
)

// ErrReleased is returned by LoadAsset after the archive was released.
var ErrReleased = errors.New("archive released")

// Archive is an opened bundle held in memory.
type Archive struct {
	path string
	size int64

	mu       sync.Mutex
	files    map[string][]byte
	issued   []weak.Pointer[bundle.Asset]
	released bool
}

// Path returns the file the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Size returns the on-disk size in bytes.
func (a *Archive) Size() int64 { return a.size }

// Names lists the asset paths in the archive, sorted.
func (a *Archive) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadAsset returns a new handle for the asset at path, or nil when the
// archive has no such entry.
func (a *Archive) LoadAsset(path string) (*bundle.Asset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, ErrReleased
	}
	data, ok := a.files[path]
	if !ok {
		return nil, nil
	}
	asset := bundle.NewAsset(path, data)
	a.issued = append(a.issued, weak.Make(asset))
	return asset, nil
}

// LoadAssetContext is LoadAsset with a cancellation check.
func (a *Archive) LoadAssetContext(ctx context.Context, path string) (*bundle.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.LoadAsset(path)
}

// Release drops the archive contents. With unloadContents, assets already
// handed out are unloaded too.
func (a *Archive) Release(unloadContents bool) {
	a.mu.Lock()
	issued := a.issued
	a.issued = nil
	a.files = nil
	a.released = true
	a.mu.Unlock()

	if !unloadContents {
		return
	}
	for _, p := range issued {
		if asset := p.Value(); asset != nil {
			asset.Unload()
		}
	}
}
