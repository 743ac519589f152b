package webclient

import (
	"context"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy matches what the provider clients historically used.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

// AttemptFunc performs one try. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) error

// Retry runs fn until it succeeds, returns an error retryable rejects, or the
// attempts are used up. The delay doubles after every failure up to MaxDelay.
// The last error is returned; a cancelled context during backoff returns the
// last error as well so callers keep the provider's classification.
func Retry(ctx context.Context, p Policy, retryable func(error) bool, fn AttemptFunc) (int, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	delay := p.InitialDelay
	var err error
	for i := 1; i <= p.Attempts; i++ {
		err = fn(ctx, i)
		if err == nil {
			return i, nil
		}
		if retryable != nil && !retryable(err) {
			return i, err
		}
		if i == p.Attempts {
			return i, err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return i, err
		case <-t.C:
		}
		if delay < p.MaxDelay {
			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}
	return p.Attempts, err
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}
