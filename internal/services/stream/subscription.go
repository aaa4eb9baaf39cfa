package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/misc"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// subscription runs one topic's dial, receive and retry cycle on its own goroutine.
type subscription struct {
	reg        *Registry
	cancel     context.CancelFunc
	conn       ports.StreamConn
	prev       <-chan struct{}
	done       chan struct{}
	logger     *zap.Logger
	target     domain.Target
	topic      domain.Topic
	frames     atomic.Uint64
	dropped    atomic.Uint64
	hbFailures atomic.Uint64
	state      domain.SubscriptionState
	attempts   int
	mu         sync.Mutex
	stopped    bool
	exhausted  bool
}

func newSubscription(r *Registry, topic domain.Topic, target domain.Target, cancel context.CancelFunc, prev <-chan struct{}) *subscription {
	return &subscription{
		reg:    r,
		topic:  topic,
		target: target,
		cancel: cancel,
		prev:   prev,
		done:   make(chan struct{}),
		logger: r.logger.With(zap.Stringer("topic", topic)),
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(ctx, domain.StateIdle)

	if s.prev != nil {
		// done must not close before the predecessor's transport is gone.
		defer func() { <-s.prev }()
		select {
		case <-s.prev:
		case <-ctx.Done():
			return
		}
	}

	addr := s.target.StreamURL(s.topic).String()
	header := s.target.Header()
	for {
		if ctx.Err() != nil {
			return
		}
		s.setState(ctx, domain.StateConnecting)
		conn, err := s.reg.dialer.Dial(ctx, addr, header)
		if err == nil {
			if !s.attach(conn) {
				_ = conn.Close()
				return
			}
			s.setState(ctx, domain.StateOpen)
			s.logger.Info("stream open")
			err = s.receive(ctx, conn)
			s.detach()
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return
		}

		attempt := s.fail()
		s.logger.Warn("stream failed", zap.Int("attempt", attempt), zap.Error(err))
		s.publish(ctx, domain.TransportError{At: s.reg.now(), Source: s.topic, Attempt: attempt, Cause: err})
		if s.reg.backoff.Exhausted(attempt) {
			s.mu.Lock()
			s.exhausted = true
			s.mu.Unlock()
			s.logger.Error("stream gave up", zap.Int("attempts", attempt))
			s.publish(ctx, domain.SubscriptionExhausted{At: s.reg.now(), Source: s.topic, Attempts: attempt})
			return
		}

		s.setState(ctx, domain.StateReconnecting)
		if misc.Sleep(ctx, s.reg.backoff.Delay(attempt-1)) != nil {
			return
		}
	}
}

// receive reads frames until the transport fails. The heartbeat lives exactly
// as long as this call.
func (s *subscription) receive(ctx context.Context, conn ports.StreamConn) error {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		s.heartbeat(hbCtx, conn)
	}()
	defer func() {
		stopHeartbeat()
		<-hbDone
	}()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return err
		}
		s.frames.Add(1)
		evt, err := Decode(s.topic, frame, s.reg.now())
		if err != nil {
			s.dropped.Add(1)
			s.logger.Debug("frame dropped", zap.Error(err), zap.Int("bytes", len(frame)))
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.publish(ctx, evt)
	}
}

func (s *subscription) publish(ctx context.Context, evt domain.Event) {
	if s.reg.bus != nil {
		s.reg.bus.Publish(ctx, evt)
	}
}

func (s *subscription) setState(ctx context.Context, to domain.SubscriptionState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	if to == domain.StateOpen {
		s.attempts = 0
	}
	s.mu.Unlock()
	if from != to {
		s.publish(ctx, domain.StateChanged{At: s.reg.now(), Source: s.topic, From: from, To: to})
	}
}

func (s *subscription) fail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

// attach records conn unless the subscription was stopped during the dial.
func (s *subscription) attach(conn ports.StreamConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conn = conn
	return true
}

func (s *subscription) detach() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// stop cancels every wait and closes the transport. Safe to call repeatedly.
func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *subscription) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Topic:             s.topic,
		Target:            s.target.String(),
		State:             s.state,
		Attempts:          s.attempts,
		Frames:            s.frames.Load(),
		Dropped:           s.dropped.Load(),
		HeartbeatFailures: s.hbFailures.Load(),
		Exhausted:         s.exhausted,
	}
}
