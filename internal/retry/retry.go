// Package retry runs remote calls with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	DefaultAttempts = 6
	DefaultBase     = 400 * time.Millisecond
	DefaultCap      = 8 * time.Second
)

// Policy controls how a call is retried. Zero fields take the defaults above;
// a nil Retryable disables retries.
type Policy struct {
	Attempts  int
	Base      time.Duration
	Cap       time.Duration
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a uniform duration in [0, max].
	Jitter func(max time.Duration) time.Duration
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns the standard policy retrying errors matched by retryable.
func Default(retryable func(error) bool) Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		Base:      DefaultBase,
		Cap:       DefaultCap,
		Retryable: retryable,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Base <= 0 {
		p.Base = DefaultBase
	}
	if p.Cap <= 0 {
		p.Cap = DefaultCap
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Jitter == nil {
		p.Jitter = uniformJitter
	}
	return p
}

// Delay is min(cap, base*2^attempt + jitter).
func (p Policy) Delay(attempt int, jitter time.Duration) time.Duration {
	p = p.normalized()
	d := p.Base
	for i := 0; i < attempt && d < p.Cap; i++ {
		d *= 2
	}
	d += jitter
	if d > p.Cap {
		d = p.Cap
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. Non-retryable errors are returned unchanged; after
// the last attempt the last retryable error is returned.
func Do(ctx context.Context, p Policy, fn func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	p = p.normalized()
	var (
		zero T
		last error
	)
	for attempt := 0; attempt < p.Attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		last = err
		if attempt == p.Attempts-1 {
			break
		}
		delay := p.Delay(attempt, p.Jitter(p.Base))
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return zero, fmt.Errorf("retry wait canceled: %w (last error: %v)", sleepErr, last)
		}
	}
	return zero, last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}
