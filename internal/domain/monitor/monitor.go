package monitor

import (
	"sync"
	"time"
)

// LoadEvent describes one physical bundle load.
type LoadEvent struct {
	BundleName   string
	PackageName  string
	AssetAddress string
	AssetPath    string
	Dependencies []string
	Async        bool
	StartTime    time.Time
	EndTime      time.Time
	ByteSize     int64
	Error        string
}

// Duration is zero until the load has finished.
func (e LoadEvent) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// UnloadEvent describes a bundle whose handle was released.
type UnloadEvent struct {
	BundleName  string
	PackageName string
	Time        time.Time
	// Forced is set when the unload ignored the reference count
	// (sweep, ForceUnload, UnloadAll).
	Forced bool
}

// Observer receives cache lifecycle events. Implementations must not call
// back into the cache that emitted the event.
type Observer interface {
	LoadStarted(LoadEvent)
	LoadSucceeded(LoadEvent)
	LoadFailed(LoadEvent)
	Unloaded(UnloadEvent)
}

// Funcs adapts optional callbacks to Observer.
type Funcs struct {
	OnLoadStart   func(LoadEvent)
	OnLoadSuccess func(LoadEvent)
	OnLoadFailed  func(LoadEvent)
	OnUnload      func(UnloadEvent)
}

// LoadStarted calls OnLoadStart if set.
func (f Funcs) LoadStarted(e LoadEvent) {
	if f.OnLoadStart != nil {
		f.OnLoadStart(e)
	}
}

// LoadSucceeded calls OnLoadSuccess if set.
func (f Funcs) LoadSucceeded(e LoadEvent) {
	if f.OnLoadSuccess != nil {
		f.OnLoadSuccess(e)
	}
}

// LoadFailed calls OnLoadFailed if set.
func (f Funcs) LoadFailed(e LoadEvent) {
	if f.OnLoadFailed != nil {
		f.OnLoadFailed(e)
	}
}

// Unloaded calls OnUnload if set.
func (f Funcs) Unloaded(e UnloadEvent) {
	if f.OnUnload != nil {
		f.OnUnload(e)
	}
}

// Hub fans events out to subscribed observers. The zero value is ready to use.
type Hub struct {
	mu        sync.RWMutex
	next      int
	observers map[int]Observer
}

// NewHub creates a hub with the given initial observers.
func NewHub(observers ...Observer) *Hub {
	h := &Hub{}
	for _, o := range observers {
		h.Subscribe(o)
	}
	return h
}

// Subscribe adds o and returns a func that removes it again.
func (h *Hub) Subscribe(o Observer) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.observers == nil {
		h.observers = make(map[int]Observer)
	}
	key := h.next
	h.next++
	h.observers[key] = o

	return func() {
		h.mu.Lock()
		delete(h.observers, key)
		h.mu.Unlock()
	}
}

// Len returns the number of subscribed observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub) snapshot() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Observer, 0, len(h.observers))
	for i := 0; i < h.next; i++ {
		if o, ok := h.observers[i]; ok {
			out = append(out, o)
		}
	}
	return out
}

// LoadStarted delivers e to every observer in subscription order.
func (h *Hub) LoadStarted(e LoadEvent) {
	for _, o := range h.snapshot() {
		o.LoadStarted(e)
	}
}

// LoadSucceeded delivers e to every observer in subscription order.
func (h *Hub) LoadSucceeded(e LoadEvent) {
	for _, o := range h.snapshot() {
		o.LoadSucceeded(e)
	}
}

// LoadFailed delivers e to every observer in subscription order.
func (h *Hub) LoadFailed(e LoadEvent) {
	for _, o := range h.snapshot() {
		o.LoadFailed(e)
	}
}

// Unloaded delivers e to every observer in subscription order.
func (h *Hub) Unloaded(e UnloadEvent) {
	for _, o := range h.snapshot() {
		o.Unloaded(e)
	}
}
