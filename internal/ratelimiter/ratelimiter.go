// Package ratelimiter throttles outbound origin requests.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every fetch issued against one origin.
//
// A nil *Limiter is valid and never throttles, so callers can hold one
// unconditionally and skip the nil checks.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a limiter admitting requestsPerSecond sustained with bursts of
// up to burst requests.
//
// Parameters:
//   - requestsPerSecond: sustained rate; 0 disables throttling
//   - burst: bucket capacity; raised to 1 when a finite rate is set
//
// Returns a configured *Limiter.
func New(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Acquire blocks until a request may be sent or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("origin rate limit: %w", err)
	}
	return nil
}

// TryAcquire takes a token without waiting.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	return l.bucket.Allow()
}

// Unlimited reports whether the limiter admits everything.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.bucket.Limit() == rate.Inf
}

// SetRate changes the sustained rate in place; 0 disables throttling.
func (l *Limiter) SetRate(requestsPerSecond float64) {
	if requestsPerSecond <= 0 {
		l.bucket.SetLimit(rate.Inf)
		return
	}
	if l.bucket.Burst() < 1 {
		l.bucket.SetBurst(1)
	}
	l.bucket.SetLimit(rate.Limit(requestsPerSecond))
}
