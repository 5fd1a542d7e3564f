// Package retry re-dials an nnfp server with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PermanentError marks a dial failure that another attempt will not
// fix, such as a rejected SSH key or an unknown host key.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff retries an operation with exponentially growing waits.
type Backoff struct {
	InitialDelay time.Duration // default 250ms
	MaxDelay     time.Duration // default 5s
	Multiplier   float64       // default 2
	// MaxAttempts counts the first try.  0 retries until ctx is done.
	MaxAttempts int
	// Jitter spreads each wait by ±25%.
	Jitter bool
	// OnRetry, when set, runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ForDial returns the client's dial policy: one attempt plus retries
// extra ones.  A negative retries count is treated as zero.
func ForDial(retries int) *Backoff {
	if retries < 0 {
		retries = 0
	}
	return &Backoff{
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		MaxAttempts:  retries + 1,
		Jitter:       true,
	}
}

// Do runs fn until it succeeds, returns a [Permanent] error, or the
// attempt budget or ctx runs out.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			if b.MaxAttempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
