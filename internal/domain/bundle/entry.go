package bundle

import (
	"sync"
	"time"
	"weak"
)

// Entry is the cache's record of one resident bundle. Callers get read-only
// access; reference counts only change through the Cache.
type Entry struct {
	name   string
	pkg    string
	handle Bundle

	mu       sync.Mutex
	refCount int
	// cascades counts the references taken by LoadAsset, each of which also
	// holds one reference on every bundle in this bundle's closure.
	cascades   int
	lastAccess time.Time
	tracked    []weak.Pointer[Asset]
}

func newEntry(name, pkg string, handle Bundle, now time.Time) *Entry {
	return &Entry{
		name:       name,
		pkg:        pkg,
		handle:     handle,
		refCount:   1,
		lastAccess: now,
	}
}

// Name returns the bundle name.
func (e *Entry) Name() string { return e.name }

// Package returns the owning package name.
func (e *Entry) Package() string { return e.pkg }

// Bundle returns the loaded handle.
func (e *Entry) Bundle() Bundle { return e.handle }

// RefCount returns the current reference count.
func (e *Entry) RefCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refCount
}

// LastAccess returns when the entry was last acquired or had an asset loaded.
func (e *Entry) LastAccess() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAccess
}

// AliveAssets prunes collected asset handles and returns how many remain.
func (e *Entry) AliveAssets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pruneLocked()
}

func (e *Entry) pruneLocked() int {
	alive := e.tracked[:0]
	for _, p := range e.tracked {
		if p.Value() != nil {
			alive = append(alive, p)
		}
	}
	// Drop references held past the new length.
	for i := len(alive); i < len(e.tracked); i++ {
		e.tracked[i] = weak.Pointer[Asset]{}
	}
	e.tracked = alive
	return len(alive)
}

func (e *Entry) retain(now time.Time) {
	e.mu.Lock()
	e.refCount++
	e.lastAccess = now
	e.mu.Unlock()
}

// drop decrements the count and returns the new value.
func (e *Entry) drop() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refCount > 0 {
		e.refCount--
	}
	return e.refCount
}

func (e *Entry) addCascade() {
	e.mu.Lock()
	e.cascades++
	e.mu.Unlock()
}

func (e *Entry) dropCascade() {
	e.mu.Lock()
	if e.cascades > 0 {
		e.cascades--
	}
	e.mu.Unlock()
}

// takeCascades clears and returns the cascade count.
func (e *Entry) takeCascades() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.cascades
	e.cascades = 0
	return n
}

func (e *Entry) track(a *Asset, now time.Time) {
	e.mu.Lock()
	e.tracked = append(e.tracked, weak.Make(a))
	e.lastAccess = now
	e.mu.Unlock()
}

func (e *Entry) release(unloadContents bool) {
	e.mu.Lock()
	e.tracked = nil
	e.refCount = 0
	e.cascades = 0
	e.mu.Unlock()

	e.handle.Release(unloadContents)
}
