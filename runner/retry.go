package runner

import (
	"context"
	"errors"
	"math"
	"time"

	"shikihoscraper/profile"
)

// Retry configures the per-code retry policy
type Retry struct {
	// Attempts is the number of retries after the first try
	Attempts int
	Base     time.Duration
	Factor   float64
	Max      time.Duration
}

// Retryable reports whether a failed scrape is worth another attempt. Missing
// profiles and cancelled runs are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, profile.ErrNotFound) && !errors.Is(err, context.Canceled)
}

// Reason is the failures CSV entry for err
func Reason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

// Ceiling is the backoff bound for attempt n (0-indexed): min(Max, Base*Factor^n)
func (r Retry) Ceiling(attempt int) time.Duration {
	wait := float64(r.Base) * math.Pow(r.Factor, float64(attempt))
	if r.Max > 0 && wait > float64(r.Max) {
		return r.Max
	}
	return time.Duration(wait)
}

// Backoff returns a full-jitter wait for attempt n: uniform in [0, Ceiling(n)).
// rnd returns a value in [0, 1).
func (r Retry) Backoff(attempt int, rnd func() float64) time.Duration {
	return time.Duration(rnd() * float64(r.Ceiling(attempt)))
}

// Pause returns the wait between two codes: sleep ± sleep*uniform(-jitter, jitter),
// never negative
func Pause(sleep time.Duration, jitter float64, rnd func() float64) time.Duration {
	if jitter <= 0 {
		return max(0, sleep)
	}
	delta := float64(sleep) * jitter * (2*rnd() - 1)
	return max(0, sleep+time.Duration(delta))
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
