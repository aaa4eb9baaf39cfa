package misc

import "time"

// Backoff is a capped exponential reconnect policy.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultStreamBackoff waits 1s, 2s, 4s ... up to 30s and gives up after 10 failures.
var DefaultStreamBackoff = Backoff{
	Base:        time.Second,
	Cap:         30 * time.Second,
	MaxAttempts: 10,
}

// Delay returns min(Base*2^attempt, Cap). Negative attempts count as 0.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		if b.Cap > 0 && d >= b.Cap {
			return b.Cap
		}
		if d > (1<<62)/2 {
			d = 1 << 62
			break
		}
		d *= 2
	}
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}

// Exhausted reports whether attempts consecutive failures use up the budget.
// A non-positive MaxAttempts never exhausts.
func (b Backoff) Exhausted(attempts int) bool {
	return b.MaxAttempts > 0 && attempts >= b.MaxAttempts
}

// Schedule lists the first n delays, in the shape Retry expects.
func (b Backoff) Schedule(n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = b.Delay(i)
	}
	return out
}
