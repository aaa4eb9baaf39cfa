package misc

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errFlaky = errors.New("connection reset")
	errFatal = errors.New("bad request")
)

// scripted returns an op that replays results and repeats the last one.
func scripted(results ...error) (op func() error, calls *int) {
	n := 0
	return func() error {
		i := n
		n++
		if i >= len(results) {
			i = len(results) - 1
		}
		return results[i]
	}, &n
}

func TestRetry(t *testing.T) {
	t.Parallel()

	fast := Backoff{Base: time.Millisecond, Cap: 2 * time.Millisecond}.Schedule(3)
	slow := Backoff{Base: 50 * time.Millisecond}.Schedule(3)
	flaky := func(err error) bool { return errors.Is(err, errFlaky) }

	tests := []struct {
		name      string
		delays    []time.Duration
		results   []error
		ctx       func() (context.Context, context.CancelFunc)
		wantCalls int
		wantErr   error
	}{
		{name: "first try", delays: fast, results: []error{nil}, wantCalls: 1},
		{name: "recovers", delays: fast, results: []error{errFlaky, errFlaky, nil}, wantCalls: 3},
		{name: "schedule used up", delays: fast, results: []error{errFlaky}, wantCalls: 4, wantErr: errFlaky},
		{name: "fatal stops at once", delays: fast, results: []error{errFatal}, wantCalls: 1, wantErr: errFatal},
		{name: "fatal after flaky", delays: fast, results: []error{errFlaky, errFatal, nil}, wantCalls: 2, wantErr: errFatal},
		{name: "empty schedule", delays: nil, results: []error{errFlaky}, wantCalls: 1, wantErr: errFlaky},
		{
			name: "deadline during wait", delays: slow, results: []error{errFlaky},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Millisecond)
			},
			wantCalls: 1, wantErr: context.DeadlineExceeded,
		},
		{
			name: "cancelled before start", delays: slow, results: []error{errFlaky},
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			wantCalls: 1, wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			op, calls := scripted(tt.results...)
			err := Retry(ctx, tt.delays, flaky, op)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if *calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", *calls, tt.wantCalls)
			}
		})
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancelled sleep blocked")
	}
}
