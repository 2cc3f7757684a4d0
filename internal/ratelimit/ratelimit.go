// Package ratelimit implements sliding-window admission control for the
// generation endpoint. State lives in process memory only: a deployment
// with more than one API instance must move this to shared storage
// before the limits mean anything globally.
package ratelimit

import (
	"sync"
	"time"
)

// Window is one nested admission rule: at most Max requests inside the
// trailing Duration.
type Window struct {
	Duration time.Duration
	Max      int
}

// DefaultWindows returns the production rules, tightest to loosest.
func DefaultWindows() []Window {
	return []Window{
		{Duration: 5 * time.Minute, Max: 3},
		{Duration: 15 * time.Minute, Max: 5},
		{Duration: 60 * time.Minute, Max: 10},
	}
}

// Limiter tracks request timestamps per key (user id or client IP).
// Construct one with NewLimiter and inject it; there is no package-level
// instance on purpose.
type Limiter struct {
	mu      sync.Mutex
	windows []Window
	largest time.Duration
	seen    map[string][]time.Time
}

// NewLimiter builds a limiter from nested windows ordered tightest to
// loosest. An empty slice admits everything.
func NewLimiter(windows []Window) *Limiter {
	var largest time.Duration
	for _, w := range windows {
		if w.Duration > largest {
			largest = w.Duration
		}
	}
	return &Limiter{
		windows: windows,
		largest: largest,
		seen:    make(map[string][]time.Time),
	}
}

// Allow decides admission for one request at time now.
// On rejection it returns false plus how long the caller should wait
// before the tightest violated window would admit again. Rejected
// requests do not mutate state.
func (l *Limiter) Allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// 1. Prune everything older than the largest window.
	stamps := l.seen[key]
	cutoff := now.Add(-l.largest)
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	// 2. Evaluate windows tightest to loosest.
	for _, w := range l.windows {
		start := now.Add(-w.Duration)
		count := 0
		var oldest time.Time
		for _, ts := range kept {
			if ts.After(start) {
				if count == 0 || ts.Before(oldest) {
					oldest = ts
				}
				count++
			}
		}
		if count >= w.Max {
			// Keep the pruned slice even though we reject, so the
			// map does not grow unbounded for a hammering client.
			l.seen[key] = kept
			retryAfter := oldest.Add(w.Duration).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
			return false, retryAfter
		}
	}

	// 3. Admit: record the request.
	l.seen[key] = append(kept, now)
	return true, 0
}

// Sweep drops keys whose every timestamp has aged out of the largest
// window. Called from the background worker so idle keys do not pin
// memory forever.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.largest)
	for key, stamps := range l.seen {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.seen, key)
		}
	}
}
