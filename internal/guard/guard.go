package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/eventbook/internal/fault"
)

// DefaultLockTimeout bounds how long a caller waits for the lock before
// giving up with a retryable fault.
const DefaultLockTimeout = 20 * time.Second

// DefaultScope is the lock scope used when the caller passes none. All
// store mutations share it, which is what makes multi-step provisioning
// atomic from a reader's point of view.
const DefaultScope = "store"

// Guard owns the per-scope locks and the optional rate limiter.
//
// Thread-safety: all methods are safe from any goroutine. Locks are
// created lazily per scope and never removed.
type Guard struct {
	timeout time.Duration
	limiter *Limiter

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// Option configures a Guard.
type Option func(*Guard)

// WithLockTimeout sets the bounded wait for lock acquisition.
//
// Default: 20s (DefaultLockTimeout)
// Use a small value (e.g. 10ms) for testing timeout behavior.
func WithLockTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLimiter attaches a rate limiter. Without one, Allow admits
// everything.
func WithLimiter(l *Limiter) Option {
	return func(g *Guard) {
		g.limiter = l
	}
}

// New creates a Guard with the default timeout and no limiter.
func New(opts ...Option) *Guard {
	g := &Guard{
		timeout: DefaultLockTimeout,
		locks:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithLock runs fn while holding the named scope's lock.
//
// The wait is bounded by min(configured timeout, ctx deadline). A caller
// that cannot acquire the lock in time gets a retryable LOCK_TIMEOUT
// fault; fn's own error passes through unchanged.
//
// There is no mid-flight cancellation: once the lock is held, fn runs to
// completion even if ctx expires.
func (g *Guard) WithLock(ctx context.Context, scope string, fn func() error) error {
	if scope == "" {
		scope = DefaultScope
	}
	ch := g.lockChan(scope)

	wait := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < wait {
			wait = remain
		}
	}
	if wait < 0 {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	start := time.Now()
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		waited := time.Since(start)
		slog.Warn("lock acquisition abandoned", "scope", scope, "waited", waited, "cause", ctx.Err())
		return fault.LockTimeout(scope, waited)
	case <-timer.C:
		slog.Warn("lock acquisition timed out", "scope", scope, "waited", wait)
		return fault.LockTimeout(scope, wait)
	}
	defer func() { <-ch }()

	return fn()
}

// Allow delegates to the attached limiter. A Guard without a limiter
// admits everything.
func (g *Guard) Allow(class, scope string) error {
	return g.limiter.Allow(class, scope)
}

// lockChan returns the scope's lock channel, creating it on first use.
// A buffered channel of size 1 is the mutex: send acquires, receive
// releases.
func (g *Guard) lockChan(scope string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.locks[scope]
	if !ok {
		ch = make(chan struct{}, 1)
		g.locks[scope] = ch
	}
	return ch
}
