// Package retry re-attempts operations against local services that may
// not be ready yet, such as an SSH agent socket that is still starting.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// PermanentError marks a failure that another attempt cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Policy describes how often and how patiently an operation is retried.
// The zero value tries once.
type Policy struct {
	// Attempts is the total number of tries including the first.
	Attempts int
	// Delay is the wait before the second attempt; it doubles after
	// every failure up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	// Jitter spreads each wait by up to a quarter in either direction.
	Jitter bool
}

// DialPolicy suits connecting to a local socket: a handful of quick
// attempts spanning roughly a second.
func DialPolicy() Policy {
	return Policy{
		Attempts: 4,
		Delay:    100 * time.Millisecond,
		MaxDelay: 400 * time.Millisecond,
		Jitter:   true,
	}
}

// Do calls fn until it succeeds, fails permanently, runs out of
// attempts, or ctx is done.  attempt is 1-based.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("after %d attempts: %w", attempts, err)
		}

		wait := delay
		if p.Jitter {
			wait = jitter(wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), err))
		case <-t.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	quarter := int64(d) / 4
	if quarter == 0 {
		return d
	}
	return d + time.Duration(rand.Int64N(2*quarter+1)-quarter)
}
