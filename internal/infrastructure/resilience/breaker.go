package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrOpen       = errors.New("circuit breaker is open")
	ErrProbeLimit = errors.New("circuit breaker probe limit reached")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// Probes is how many calls are let through while half-open.
	Probes uint32
	// Window clears the counts periodically while closed.
	Window time.Duration
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
	// Trip decides, after a failure, whether to open.
	Trip func(Counts) bool
	// Healthy reports errors that still prove the origin is up, such as a
	// missing file. A nil error is always healthy.
	Healthy func(error) bool
	// OnStateChange is called with the lock held; it must not call back in.
	OnStateChange func(name string, from, to State)
	// Now replaces time.Now.
	Now func() time.Time
}

// Counts holds the statistics for the current window
type Counts struct {
	Calls                uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards calls to one remote origin.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
}

// New creates a circuit breaker. Zero settings get defaults: one probe, a
// one minute window and cooldown, and tripping after five straight failures.
func New(name string, settings Settings) *Breaker {
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.Window == 0 {
		settings.Window = time.Minute
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = time.Minute
	}
	if settings.Trip == nil {
		settings.Trip = func(c Counts) bool { return c.ConsecutiveFailures >= 5 }
	}
	if settings.Healthy == nil {
		settings.Healthy = func(error) bool { return false }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	return &Breaker{
		name:     name,
		settings: settings,
		expiry:   settings.Now().Add(settings.Window),
	}
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(b.settings.Now())
}

// Counts returns a copy of the counts for the current window
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn if the breaker lets the call through. Cancellation of ctx is
// not held against the origin.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	generation, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	switch {
	case err == nil || b.settings.Healthy(err):
		b.settle(generation, true)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// The caller gave up; the origin told us nothing.
	default:
		b.settle(generation, false)
	}
	return err
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current(b.settings.Now()) {
	case StateOpen:
		return 0, ErrOpen
	case StateHalfOpen:
		if b.counts.Calls >= b.settings.Probes {
			return 0, ErrProbeLimit
		}
	}
	b.counts.Calls++
	return b.generation, nil
}

func (b *Breaker) settle(generation uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	state := b.current(now)
	if generation != b.generation {
		return
	}

	if ok {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Probes {
			b.transition(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	if state == StateHalfOpen || b.settings.Trip(b.counts) {
		b.transition(StateOpen, now)
	}
}

// current advances time based transitions and returns the state.
func (b *Breaker) current(now time.Time) State {
	switch b.state {
	case StateClosed:
		if now.After(b.expiry) {
			b.counts = Counts{}
			b.generation++
			b.expiry = now.Add(b.settings.Window)
		}
	case StateOpen:
		if now.After(b.expiry) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}
	b.generation++

	switch to {
	case StateClosed:
		b.expiry = now.Add(b.settings.Window)
	case StateOpen:
		b.expiry = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
