// Package flight provides non-blocking single-flight guards for user-initiated
// operations: a second invocation while one is running is rejected, not queued.
package flight

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrInFlight is returned when the guarded operation is already running.
var ErrInFlight = errors.New("operation already in progress")

// Guard admits at most one holder at a time. The zero value is not usable;
// call New.
//
// A holder admitted through Do is bound to its context. Once that context
// is cancelled the holder is abandoned and the next Do may take the guard
// over without waiting for the abandoned call to return.
type Guard struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	holder *hold
}

type hold struct {
	ctx  context.Context
	once sync.Once
}

// New returns an idle guard.
func New() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// TryAcquire claims the guard, returning false when it is already held by a
// live holder.
func (g *Guard) TryAcquire() bool {
	_, ok := g.acquire(nil)
	return ok
}

// Release frees a guard claimed with TryAcquire.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == nil {
		g.sem.Release(1)
		return
	}
	g.releaseLocked(g.holder)
}

// Busy reports whether the guard is held by a live holder.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sem.TryAcquire(1) {
		g.sem.Release(1)
		return false
	}
	return g.holder == nil || !g.holder.abandoned()
}

// Do runs fn while holding the guard, or returns ErrInFlight immediately.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	h, ok := g.acquire(ctx)
	if !ok {
		return ErrInFlight
	}
	defer func() {
		g.mu.Lock()
		g.releaseLocked(h)
		g.mu.Unlock()
	}()
	return fn(ctx)
}

func (g *Guard) acquire(ctx context.Context) (*hold, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.sem.TryAcquire(1) {
		if g.holder == nil || !g.holder.abandoned() {
			return nil, false
		}
		g.releaseLocked(g.holder)
		if !g.sem.TryAcquire(1) {
			return nil, false
		}
	}
	var h *hold
	if ctx != nil {
		h = &hold{ctx: ctx}
	}
	g.holder = h
	return h, true
}

// releaseLocked gives the permit back at most once per holder.
func (g *Guard) releaseLocked(h *hold) {
	h.once.Do(func() { g.sem.Release(1) })
	if g.holder == h {
		g.holder = nil
	}
}

func (h *hold) abandoned() bool {
	return h.ctx != nil && h.ctx.Err() != nil
}
