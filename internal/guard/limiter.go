package guard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/eventbook/internal/fault"
)

// Action classes for rate limiting. Mutations are expensive (they hold
// the lock and touch child storage); reads are cheap.
const (
	ClassCreate = "create"
	ClassRead   = "read"
)

// Rule bounds one action class: at most Max requests per Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// Limiter is a fixed-window counter per (class, scope) pair.
//
// Fixed windows are deliberately simple: the count resets when the window
// started a full Window ago. A caller rejected mid-window gets the time
// until reset as its retry hint.
type Limiter struct {
	now   func() time.Time
	rules map[string]Rule

	mu      sync.Mutex
	windows map[windowKey]*window
}

type windowKey struct {
	class string
	scope string
}

type window struct {
	start time.Time
	count int
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithNow replaces the limiter's clock. Used by tests to step through
// windows deterministically.
func WithNow(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates a limiter from per-class rules. The rules map is
// copied to prevent external mutation.
func NewLimiter(rules map[string]Rule, opts ...LimiterOption) *Limiter {
	copied := make(map[string]Rule, len(rules))
	for class, rule := range rules {
		copied[class] = rule
	}

	l := &Limiter{
		now:     time.Now,
		rules:   copied,
		windows: make(map[windowKey]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow admits or rejects one request for the given class and scope.
//
// Rejection is a retryable RATE_LIMIT fault carrying the time until the
// window resets. An unusable limiter (nil receiver, unknown class, zero
// window or max) FAILS OPEN: the request is admitted and a warning
// logged.
func (l *Limiter) Allow(class, scope string) error {
	if l == nil {
		slog.Warn("rate limiter absent, admitting request", "class", class, "scope", scope)
		return nil
	}

	rule, ok := l.rules[class]
	if !ok || rule.Max <= 0 || rule.Window <= 0 {
		slog.Warn("rate limit rule unusable, admitting request",
			"class", class,
			"scope", scope,
			"max", rule.Max,
			"window", rule.Window,
		)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := windowKey{class: class, scope: scope}
	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= rule.Window {
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > rule.Max {
		retryAfter := w.start.Add(rule.Window).Sub(now)
		return fault.RateLimit(class, retryAfter)
	}
	return nil
}
