package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum spacing between two accepted chat messages
const DefaultWindow = time.Second

// RateLimiter throttles participant chat per connection
// ARCHITECTURAL DISCOVERY: Per-connection state tracking with explicit Forget
// on disconnect keeps the map bounded by the live roster
type RateLimiter struct {
	mu           sync.Mutex
	window       time.Duration
	lastAccepted map[string]time.Time
}

// NewRateLimiter creates a limiter that accepts one action per window.
// A non-positive window falls back to DefaultWindow.
func NewRateLimiter(window time.Duration) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		window:       window,
		lastAccepted: make(map[string]time.Time),
	}
}

// Window returns the configured window
func (rl *RateLimiter) Window() time.Duration {
	return rl.window
}

// TryConsume reports whether connectionID may act at now.
// FUNCTIONAL DISCOVERY: Denied attempts leave the timestamp untouched,
// otherwise a chatty client could extend its own lockout forever
func (rl *RateLimiter) TryConsume(connectionID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if last, exists := rl.lastAccepted[connectionID]; exists && now.Sub(last) < rl.window {
		return false
	}
	rl.lastAccepted[connectionID] = now
	return true
}

// RetryAfter returns how long connectionID must wait before TryConsume succeeds
func (rl *RateLimiter) RetryAfter(connectionID string, now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.lastAccepted[connectionID]
	if !exists {
		return 0
	}
	if wait := rl.window - now.Sub(last); wait > 0 {
		return wait
	}
	return 0
}

// Forget drops the entry of a connection that left the session
func (rl *RateLimiter) Forget(connectionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.lastAccepted, connectionID)
}

// Len returns the number of tracked connections
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.lastAccepted)
}
