// Package conn manages long-lived authenticated handles to backing stores.
//
// A Connection lazily acquires a handle, remembers when it was issued and
// transparently re-issues it once the credential lifetime window has passed.
// Concurrent callers share one in-flight acquisition. A replaced handle is
// retired rather than released, so callers that obtained it before the
// refresh can still use it for the grace period.
package conn

import (
	"context"
	"sync"
	"time"

	"qcgallery/internal"
	"qcgallery/internal/errors"

	"github.com/google/uuid"
)

// DefaultLifetime is the credential lifetime window of the upstream OAuth tokens.
const DefaultLifetime = 59 * time.Minute

// DefaultGrace is how long a replaced handle stays open for callers that
// obtained it before the refresh.
const DefaultGrace = 5 * time.Minute

// AcquireFunc obtains a fresh authenticated handle.
type AcquireFunc[H any] func(ctx context.Context) (H, error)

// ReleaseFunc disposes of a handle that is being replaced or closed.
type ReleaseFunc[H any] func(H) error

// Observer receives refresh events, typically a metrics sink.
type Observer interface {
	ConnectionIssued(name string)
	ConnectionFailed(name, code string)
}

// State is the handle currently held by a Connection.
type State[H any] struct {
	Handle     H
	IssuedAt   time.Time
	Generation string
}

// Options configure a Connection. Zero values get sensible defaults.
type Options struct {
	Name     string
	Lifetime time.Duration
	Grace    time.Duration
	Clock    Clock
	Logger   *internal.Logger
	Observer Observer
}

// Connection is a process-wide shared handle with TTL-based re-issuance.
type Connection[H any] struct {
	name     string
	acquire  AcquireFunc[H]
	release  ReleaseFunc[H]
	clock    Clock
	lifetime time.Duration
	grace    time.Duration
	log      *internal.Logger
	observer Observer

	mu      sync.RWMutex
	state   *State[H]
	retired []retiredHandle[H]
}

type retiredHandle[H any] struct {
	state     State[H]
	retiredAt time.Time
}

// New creates a connection. No handle is acquired until the first EnsureValid.
func New[H any](acquire AcquireFunc[H], release ReleaseFunc[H], opts Options) *Connection[H] {
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultLifetime
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = internal.DefaultLogger
	}
	if opts.Name == "" {
		opts.Name = "store"
	}
	return &Connection[H]{
		name:     opts.Name,
		acquire:  acquire,
		release:  release,
		clock:    opts.Clock,
		lifetime: opts.Lifetime,
		grace:    opts.Grace,
		log:      opts.Logger.With("conn:" + opts.Name),
		observer: opts.Observer,
	}
}

// Name identifies the store this connection talks to
func (c *Connection[H]) Name() string { return c.name }

// EnsureValid returns a handle that is inside its lifetime window, acquiring
// or re-issuing one first if needed.
func (c *Connection[H]) EnsureValid(ctx context.Context) (H, error) {
	c.mu.RLock()
	if st := c.state; st != nil && !c.expired(st) {
		h := st.Handle
		c.mu.RUnlock()
		return h, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the write lock.
	if st := c.state; st != nil && !c.expired(st) {
		return st.Handle, nil
	}

	if c.state != nil {
		c.log.Info("handle %s expired after %s, re-issuing", c.state.Generation, c.clock.Now().Sub(c.state.IssuedAt).Round(time.Second))
		c.retireLocked()
	}
	c.sweepLocked()

	h, err := c.acquire(ctx)
	if err != nil {
		var zero H
		err = classify(c.name, err)
		c.log.Error("acquire failed: %v", err)
		if c.observer != nil {
			c.observer.ConnectionFailed(c.name, errors.GetCode(err))
		}
		return zero, err
	}

	c.state = &State[H]{
		Handle:     h,
		IssuedAt:   c.clock.Now(),
		Generation: uuid.NewString(),
	}
	c.log.Debug("issued handle %s", c.state.Generation)
	if c.observer != nil {
		c.observer.ConnectionIssued(c.name)
	}
	return h, nil
}

// Snapshot returns a copy of the current state, or nil if no handle is held.
func (c *Connection[H]) Snapshot() *State[H] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil
	}
	st := *c.state
	return &st
}

// Retired reports how many replaced handles are still open
func (c *Connection[H]) Retired() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.retired)
}

// Close releases the current handle and every retired one. A later
// EnsureValid acquires a new one.
func (c *Connection[H]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.release != nil {
		for _, r := range c.retired {
			if err := c.release(r.state.Handle); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if c.state != nil {
			if err := c.release(c.state.Handle); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	c.retired = nil
	c.state = nil
	return firstErr
}

func (c *Connection[H]) expired(st *State[H]) bool {
	return c.clock.Now().Sub(st.IssuedAt) > c.lifetime
}

func (c *Connection[H]) retireLocked() {
	c.retired = append(c.retired, retiredHandle[H]{state: *c.state, retiredAt: c.clock.Now()})
	c.state = nil
}

// sweepLocked releases retired handles whose grace period has passed
func (c *Connection[H]) sweepLocked() {
	now := c.clock.Now()
	kept := c.retired[:0]
	for _, r := range c.retired {
		if now.Sub(r.retiredAt) < c.grace {
			kept = append(kept, r)
			continue
		}
		if c.release != nil {
			if err := c.release(r.state.Handle); err != nil {
				c.log.Warn("release of handle %s failed: %v", r.state.Generation, err)
			}
		}
		c.log.Debug("released retired handle %s", r.state.Generation)
	}
	clear(c.retired[len(kept):])
	c.retired = kept
}

// classify keeps AuthFailure/Unreachable codes from the acquirer and treats
// anything else as the store being unreachable.
func classify(name string, err error) error {
	if errors.IsConnectionError(err) {
		return err
	}
	return errors.Unreachable(name, err)
}
