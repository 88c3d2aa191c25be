// Package guard serializes mutations and throttles callers.
//
// Two mechanisms, both bounded:
//
// WithLock is a per-scope mutex built on a buffered channel so acquisition
// can race a timer and the caller's context. A mutation either gets the
// lock within the bounded wait or fails with a retryable fault - it never
// deadlocks and never silently drops the request.
//
// Allow is a fixed-window counter per (action class, caller scope). The
// limiter FAILS OPEN: an absent limiter or an unusable rule admits the
// request and logs a warning. Availability over strictness - throttling
// must never become an outage.
package guard
