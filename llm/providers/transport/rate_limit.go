package transport

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter provides rate limiting functionality
type Limiter struct {
	limiter *rate.Limiter
	mu      sync.RWMutex
}

// NewLimiter creates a rate limiter. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until the request can proceed
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Wait(ctx)
}

// Allow returns true if the request can proceed immediately
func (l *Limiter) Allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiter.Allow()
}

// SetLimit updates the rate limit
func (l *Limiter) SetLimit(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rps <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(rps))
}

// RateLimiter manages one limiter per provider
type RateLimiter struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewRateLimiter creates a new rate limiter manager
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*Limiter),
	}
}

// GetLimiter gets or creates a rate limiter for the specified provider
func (rl *RateLimiter) GetLimiter(provider string, rps float64, burst int) *Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[provider]; exists {
		return limiter
	}

	limiter := NewLimiter(rps, burst)
	rl.limiters[provider] = limiter
	return limiter
}

// WaitForProvider blocks until the request for the specified provider can proceed
func (rl *RateLimiter) WaitForProvider(ctx context.Context, provider string) error {
	rl.mu.RLock()
	limiter, exists := rl.limiters[provider]
	rl.mu.RUnlock()

	if !exists {
		return nil
	}

	return limiter.Wait(ctx)
}
