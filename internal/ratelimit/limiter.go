// Package ratelimit implements the per-endpoint sliding window limiter.
// The global per-IP guard in front of the router uses go-chi/httprate; this
// limiter covers the per-key limits configured on individual endpoints.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the limit window when none is configured.
	DefaultWindow = time.Second

	// minSweepInterval is the floor between cleanup sweeps.
	minSweepInterval = 5 * time.Minute

	// staleAfter is how long an idle key survives before a sweep drops it.
	staleAfter = 60 * time.Second
)

// Result describes the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type window struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// Limiter is a sliding window rate limiter keyed by arbitrary strings.
// Keys are typically endpointID:clientIP. Stale keys are swept opportunistically
// during Check calls, at most once per sweep interval.
type Limiter struct {
	mu            sync.Mutex
	windows       map[string]*window
	lastSweep     time.Time
	sweepInterval time.Duration
	staleAfter    time.Duration
	now           func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithSweepInterval overrides the cleanup sweep interval.
// Values below the five minute floor are raised to it.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d < minSweepInterval {
			d = minSweepInterval
		}
		l.sweepInterval = d
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows:       make(map[string]*window),
		sweepInterval: minSweepInterval,
		staleAfter:    staleAfter,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Check records one request against the key and reports whether it is within
// the limit. A limit of zero or less means unlimited. A timestamp exactly one
// window old is expired: with a 1s window, a request at t and another at
// t+1s both pass under limit 1.
func (l *Limiter) Check(key string, limit int, windowSize time.Duration) Result {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}

	now := l.now()

	if limit <= 0 {
		return Result{Allowed: true, Limit: limit, Remaining: -1, ResetAt: now.Add(windowSize)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweepLocked(now)

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.lastSeen = now

	// Drop timestamps at or past one window old.
	cutoff := now.Add(-windowSize)
	live := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	w.timestamps = live

	resetAt := now.Add(windowSize)
	if len(w.timestamps) > 0 {
		resetAt = w.timestamps[0].Add(windowSize)
	}

	if len(w.timestamps) >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	w.timestamps = append(w.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.timestamps),
		ResetAt:   resetAt,
	}
}

// maybeSweepLocked drops keys idle longer than staleAfter, at most once per
// sweep interval. Caller holds the lock.
func (l *Limiter) maybeSweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepInterval {
		return
	}
	l.lastSweep = now

	for key, w := range l.windows {
		if now.Sub(w.lastSeen) > l.staleAfter {
			delete(l.windows, key)
		}
	}
}

// Keys reports the number of tracked keys. Test hook.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
