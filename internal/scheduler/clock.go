package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Clock abstracts time so retry behavior is deterministically testable
// without real elapsed time.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BackoffFactory builds a fresh backoff sequence for one task's retries.
type BackoffFactory func() backoff.BackOff

func defaultBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	return bo
}
