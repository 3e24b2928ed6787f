package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// InputRateLimiter enforces spec.md §4.5's "optionally rate-limit to
// INPUT_SEND_RATE (20 Hz) with a token bucket". Grounded on
// internal/api/ratelimit.go's IPRateLimiter, keyed by peer id instead of
// source IP and sized for a handful of connected peers rather than an
// unbounded set of internet clients.
type InputRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewInputRateLimiter creates a limiter allowing ratePerSecond sustained,
// burst extra in a single instant, per peer.
func NewInputRateLimiter(ratePerSecond float64, burst int) *InputRateLimiter {
	return &InputRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      ratePerSecond,
		burst:    burst,
	}
}

// Allow reports whether peerID may send another input message right now.
func (rl *InputRateLimiter) Allow(peerID string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[peerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
		rl.limiters[peerID] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

// Remove discards a disconnected peer's bucket.
func (rl *InputRateLimiter) Remove(peerID string) {
	rl.mu.Lock()
	delete(rl.limiters, peerID)
	rl.mu.Unlock()
}
