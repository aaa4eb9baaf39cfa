package worker

import (
	"context"
	"time"
)

func Backoff(attempt int) {
	time.Sleep(time.Duration(attempt) * time.Second) // want `time.Sleep ignores cancellation`
}

func Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
