// Package ratelimit throttles outbound calls to the LLM gateway. Grounded
// in the teacher's RateLimiterService (one token-bucket limiter per
// environment, lazily created, guarded by a RWMutex), but repurposed from
// per-environment M3-API throttling to a single shared limiter for
// internal/llm calls: this service has one upstream, not one per org/env.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket rate.Limiter behind a small interface so
// callers (the LLM client, the embedding cache warmer) don't need to know
// about golang.org/x/time/rate directly.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
}

// New creates a Limiter allowing requestsPerSecond sustained calls with
// the given burst size. Values <= 0 fall back to an effectively unlimited
// limiter (useful for local/dev environments that set LLM_RATE_RPS=0).
func New(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a call is permitted or ctx is cancelled. Callers in
// internal/llm invoke this immediately before issuing an HTTP request to
// the chat/embedding gateway.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed immediately, without blocking.
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Allow()
}

// Reconfigure swaps in a new rate/burst, matching the teacher's
// ReloadSettings entry point for runtime-adjustable throttling.
func (l *Limiter) Reconfigure(requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if requestsPerSecond <= 0 {
		l.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	if burst < 1 {
		burst = 1
	}
	l.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
