package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Engine re-derives the countdown state for a single room once per
// second and reports each tick to the OnTick callback. When the state
// first transitions to expired, OnExpired fires exactly once and the
// engine stops rescheduling itself; later Run invocations on the same
// engine are no-ops.
type Engine struct {
	clock       clockwork.Clock
	maxLifespan time.Duration

	mu        sync.Mutex
	expiresAt *time.Time

	// OnTick receives every computed tick, including the terminal one.
	OnTick func(Tick)
	// OnExpired fires once, on the first tick whose state is expired.
	OnExpired func()

	done bool
}

// NewEngine builds an engine for a room expiring at expiresAt. Pass a
// nil expiry for rooms whose expiry is unknown; the engine then emits
// a single indeterminate tick and stops rather than counting from zero.
func NewEngine(clock clockwork.Clock, expiresAt *time.Time, maxLifespan time.Duration) *Engine {
	return &Engine{clock: clock, maxLifespan: maxLifespan, expiresAt: expiresAt}
}

// SetExpiry replaces the tracked expiry, e.g. after a lifespan
// extension arrives over the change feed. Resetting the expiry on an
// already-expired engine does not revive it; the room is closed.
func (e *Engine) SetExpiry(expiresAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.expiresAt = &expiresAt
}

// Run ticks once per second until the room expires or ctx is
// cancelled. It blocks; callers run it in its own goroutine.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done {
		return
	}
	if e.tick() {
		return
	}
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if e.tick() {
				return
			}
		}
	}
}

// tick computes and publishes one tick, returning true when the engine
// should stop rescheduling.
func (e *Engine) tick() bool {
	e.mu.Lock()
	t := Compute(e.expiresAt, e.clock.Now(), e.maxLifespan)
	if t.Indeterminate || t.Expired {
		e.done = true
	}
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(t)
	}
	if t.Indeterminate {
		// No countdown without a parseable expiry; do not close.
		return true
	}
	if t.Expired {
		if e.OnExpired != nil {
			e.OnExpired()
		}
		return true
	}
	return false
}
