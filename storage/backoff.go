package storage

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff controls how long a save waits for a busy lock.
type Backoff struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// DefaultBackoff waits a little under two seconds in total before giving up.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:     6,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     800 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// retry calls fn until it succeeds, returns an error retryable rejects, the
// attempts run out, or ctx is done. The last error from fn is returned.
func (b Backoff) retry(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := max(b.Attempts, 1)
	delay := b.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			break
		}

		timer := time.NewTimer(jitter(delay, b.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = grow(delay, b.Multiplier, b.MaxDelay)
	}
	return lastErr
}

func grow(delay time.Duration, multiplier float64, ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		ceiling = delay
	}
	if multiplier <= 1.0 {
		return min(delay, ceiling)
	}
	next := float64(delay) * multiplier
	if math.IsInf(next, 0) || math.IsNaN(next) || next > float64(ceiling) {
		return ceiling
	}
	return time.Duration(next)
}

func jitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	factor = min(factor, 1.0)
	spread := float64(d) * factor
	out := d + time.Duration(spread*(2*rand.Float64()-1)) //nolint:gosec // jitter only
	return max(out, 0)
}
