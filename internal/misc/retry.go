package misc

import (
	"context"
	"time"
)

// DefaultBackoff is the one-shot request schedule: 1s, 2s, 4s.
var DefaultBackoff = Backoff{Base: time.Second, Cap: 4 * time.Second}.Schedule(3)

// Retry runs op until it succeeds, returns a non-retryable error, or delays run out.
// Waits are cut short by ctx.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || !isRetryable(err) {
			return err
		}
		if err := Sleep(ctx, delays[i]); err != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
