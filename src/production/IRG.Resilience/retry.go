package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The breaker does not count it as a failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retrier runs an operation with exponential backoff behind a circuit breaker
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	Breaker    *CircuitBreaker
}

// NewRetrier creates a retrier with its own breaker
func NewRetrier(maxRetries int, baseDelay time.Duration, breaker *CircuitBreaker) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrier{MaxRetries: maxRetries, BaseDelay: baseDelay, Breaker: breaker}
}

// Do executes operation until it succeeds, returns a permanent error, or the
// retries are exhausted. The delay doubles after each attempt.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if r.Breaker != nil && !r.Breaker.Allow() {
			if lastErr != nil {
				return fmt.Errorf("%w: %v", ErrCircuitOpen, lastErr)
			}
			return ErrCircuitOpen
		}

		err := operation(ctx)
		if err == nil {
			if r.Breaker != nil {
				r.Breaker.OnSuccess()
			}
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			// the remote side answered, so the circuit is healthy
			if r.Breaker != nil {
				r.Breaker.OnSuccess()
			}
			return p.err
		}

		lastErr = err
		if r.Breaker != nil {
			r.Breaker.OnFailure()
		}

		if attempt == r.MaxRetries {
			break
		}

		delay := time.Duration(float64(r.BaseDelay) * math.Pow(2, float64(attempt)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", r.MaxRetries+1, lastErr)
}
