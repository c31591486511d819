// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy describes how many times and how fast to retry.
type Policy struct {
	// MaxAttempts counts the first call; values below 1 mean a single attempt.
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	// Jitter is a fraction in [0,1] applied symmetrically to each wait.
	Jitter float64
}

// DefaultPolicy returns the policy used for origin fetches.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as worth another attempt. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var te transientError
	return errors.As(err, &te)
}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// run out or ctx ends. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := max(p.MaxAttempts, 1)

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		last = err

		if !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	var te transientError
	if errors.As(last, &te) {
		return te.err
	}
	return last
}

func (p Policy) backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := float64(p.InitialWait) * math.Pow(mult, float64(attempt-1))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}
	if p.Jitter > 0 {
		wait += wait * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}
