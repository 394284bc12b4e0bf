// Package ratelimit implements a sliding-window request limiter with
// escalating temporary bans, keyed by client identity and request class.
package ratelimit

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Class identifies a request class with its own window, threshold, and ban.
type Class string

const (
	// ClassGeneral covers ordinary API requests.
	ClassGeneral Class = "general"
	// ClassSensitive covers authentication and other abuse-prone operations.
	ClassSensitive Class = "sensitive"
	// ClassStatic covers cheap static or read-only requests.
	ClassStatic Class = "static"
)

// ClassConfig is the limit for one request class. BanDuration is the base
// ban; repeated violations within the violation window double it.
type ClassConfig struct {
	Window      time.Duration
	MaxRequests int
	BanDuration time.Duration
}

// DefaultClasses returns the built-in per-class limits.
func DefaultClasses() map[Class]ClassConfig {
	return map[Class]ClassConfig{
		ClassGeneral:   {Window: 15 * time.Minute, MaxRequests: 100, BanDuration: time.Hour},
		ClassSensitive: {Window: time.Minute, MaxRequests: 5, BanDuration: 5 * time.Minute},
		ClassStatic:    {Window: time.Minute, MaxRequests: 200, BanDuration: 2 * time.Minute},
	}
}

const (
	// violationWindow is how far back prior ban triggers count toward
	// exponential escalation.
	violationWindow = 5 * time.Minute
	// banCap bounds the escalated ban duration.
	banCap = time.Hour
	// maxJitterFraction is the upper bound of the random jitter added to a
	// ban, as a fraction of its duration. Staggers mass-unban when many
	// clients behind one NAT trip the limiter together.
	maxJitterFraction = 0.1
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type entry struct {
	class       Class
	times       []time.Time
	banTriggers []time.Time
	bannedUntil time.Time
}

// Limiter tracks request timestamps and bans per (clientID, class). All
// state is in-memory; Sweep must run periodically to bound the map.
type Limiter struct {
	mu      sync.Mutex
	classes map[Class]ClassConfig
	entries map[string]*entry
	now     func() time.Time
	jitter  func(max time.Duration) time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithJitter overrides the ban jitter source. The function receives the
// maximum jitter and returns a value in [0, max].
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(l *Limiter) { l.jitter = fn }
}

// New creates a Limiter. Classes missing from overrides use the defaults.
func New(overrides map[Class]ClassConfig, opts ...Option) *Limiter {
	classes := DefaultClasses()
	for class, cfg := range overrides {
		classes[class] = cfg
	}
	l := &Limiter{
		classes: classes,
		entries: make(map[string]*entry),
		now:     time.Now,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int64N(int64(max) + 1))
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records a request attempt for (clientID, class) and decides whether
// it may proceed. The check and the increment happen under one lock; there
// is no window for two concurrent requests to both observe count == max-1.
func (l *Limiter) Check(clientID string, class Class) Decision {
	cfg, ok := l.classes[class]
	if !ok {
		cfg = l.classes[ClassGeneral]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := clientID + "|" + string(class)
	e, ok := l.entries[key]
	if !ok {
		e = &entry{class: class}
		l.entries[key] = e
	}

	if now.Before(e.bannedUntil) {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    e.bannedUntil,
			RetryAfter: e.bannedUntil.Sub(now),
		}
	}

	e.times = trimBefore(e.times, now.Add(-cfg.Window))
	if len(e.times) >= cfg.MaxRequests {
		e.banTriggers = trimBefore(e.banTriggers, now.Add(-violationWindow))
		ban := escalatedBan(cfg.BanDuration, len(e.banTriggers))
		ban += l.jitter(time.Duration(float64(ban) * maxJitterFraction))
		e.banTriggers = append(e.banTriggers, now)
		e.bannedUntil = now.Add(ban)
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    e.bannedUntil,
			RetryAfter: ban,
		}
	}

	e.times = append(e.times, now)
	return Decision{
		Allowed:   true,
		Remaining: cfg.MaxRequests - len(e.times),
		ResetAt:   e.times[0].Add(cfg.Window),
	}
}

// escalatedBan doubles the base ban for each prior violation, capped.
func escalatedBan(base time.Duration, violations int) time.Duration {
	ban := base
	for i := 0; i < violations; i++ {
		ban *= 2
		if ban >= banCap {
			return banCap
		}
	}
	if ban > banCap {
		ban = banCap
	}
	return ban
}

// Sweep removes entries whose window has drained and whose ban has elapsed.
// Call periodically from a background goroutine to bound memory.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.entries {
		if now.Before(e.bannedUntil) {
			continue
		}
		cfg := l.classes[e.class]
		e.times = trimBefore(e.times, now.Add(-cfg.Window))
		e.banTriggers = trimBefore(e.banTriggers, now.Add(-violationWindow))
		if len(e.times) == 0 && len(e.banTriggers) == 0 {
			delete(l.entries, key)
		}
	}
}

// Len returns the number of live (clientID, class) entries.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
