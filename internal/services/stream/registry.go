// Package stream keeps one live push subscription per telemetry topic.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/misc"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("registry closed")

// DefaultHeartbeatInterval is the ping period of an open stream.
const DefaultHeartbeatInterval = 30 * time.Second

// Stats describes one tracked subscription.
type Stats struct {
	Topic             domain.Topic             `json:"topic"`
	Target            string                   `json:"target"`
	State             domain.SubscriptionState `json:"state"`
	Attempts          int                      `json:"attempts"`
	Frames            uint64                   `json:"frames"`
	Dropped           uint64                   `json:"dropped"`
	HeartbeatFailures uint64                   `json:"heartbeatFailures"`
	Exhausted         bool                     `json:"exhausted"`
}

// Option customizes a Registry.
type Option func(*Registry)

// WithBackoff sets the reconnect policy.
func WithBackoff(b misc.Backoff) Option {
	return func(r *Registry) { r.backoff = b }
}

// WithHeartbeat sets the ping period; zero disables pings.
func WithHeartbeat(interval time.Duration) Option {
	return func(r *Registry) { r.heartbeat = interval }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry owns the topic to subscription map.
type Registry struct {
	dialer    ports.StreamDialer
	bus       ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	subs      map[domain.Topic]*subscription
	retired   map[domain.Topic]<-chan struct{}
	backoff   misc.Backoff
	heartbeat time.Duration
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
}

// NewRegistry wires a registry to a transport and an event publisher.
func NewRegistry(dialer ports.StreamDialer, bus ports.EventPublisher, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		dialer:    dialer,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
		subs:      make(map[domain.Topic]*subscription),
		retired:   make(map[domain.Topic]<-chan struct{}),
		backoff:   misc.DefaultStreamBackoff,
		heartbeat: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe starts streaming topic from target, replacing any existing
// subscription for the topic. It returns without waiting for the dial; the
// replacement dials only after the previous transport is closed.
func (r *Registry) Subscribe(topic domain.Topic, target domain.Target) error {
	if err := topic.Validate(); err != nil {
		return err
	}
	if !topic.Streamable() {
		return fmt.Errorf("%w: %s", domain.ErrNotStreamable, topic)
	}
	if err := target.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	prev := r.retired[topic]
	delete(r.retired, topic)
	old, replacing := r.subs[topic]
	if replacing {
		prev = old.done
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := newSubscription(r, topic, target, cancel, prev)
	r.subs[topic] = s
	r.wg.Add(1)
	r.mu.Unlock()

	// Closing a transport may block on the close handshake, so the old
	// subscription is stopped outside the lock. s dials only after old.done.
	if replacing {
		old.stop()
	}
	go func() {
		defer r.wg.Done()
		s.run(ctx)
	}()
	r.logger.Info("subscribed", zap.Stringer("topic", topic), zap.Stringer("target", target))
	return nil
}

// Unsubscribe tears down the topic's subscription. Unknown topics are a no-op.
func (r *Registry) Unsubscribe(topic domain.Topic) error {
	if err := topic.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	s, ok := r.subs[topic]
	if ok {
		delete(r.subs, topic)
		r.retired[topic] = s.done
	}
	r.mu.Unlock()

	if ok {
		s.stop()
		r.logger.Info("unsubscribed", zap.Stringer("topic", topic))
	}
	return nil
}

// UnsubscribeAll tears down every tracked subscription.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[domain.Topic]*subscription)
	for t, s := range subs {
		r.retired[t] = s.done
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	if len(subs) > 0 {
		r.logger.Info("unsubscribed all", zap.Int("count", len(subs)))
	}
}

// WaitRetired blocks until every subscription removed by Unsubscribe or
// UnsubscribeAll has exited, so none of them publishes again, or ctx ends.
func (r *Registry) WaitRetired(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]<-chan struct{}, 0, len(r.retired))
	for _, done := range r.retired {
		pending = append(pending, done)
	}
	r.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Topics lists tracked topics in a stable order.
func (r *Registry) Topics() []domain.Topic {
	r.mu.Lock()
	out := make([]domain.Topic, 0, len(r.subs))
	for t := range r.subs {
		out = append(out, t)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Stats reports the subscription for topic, or domain.ErrNotFound.
func (r *Registry) Stats(topic domain.Topic) (Stats, error) {
	r.mu.Lock()
	s, ok := r.subs[topic]
	r.mu.Unlock()
	if !ok {
		return Stats{}, domain.ErrNotFound
	}
	return s.stats(), nil
}

// AllStats reports every tracked subscription ordered by topic.
func (r *Registry) AllStats() []Stats {
	r.mu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	out := make([]Stats, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic.String() < out[j].Topic.String() })
	return out
}

// Close tears everything down, rejects further Subscribe calls and waits for
// the subscription goroutines to exit or ctx to end.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.UnsubscribeAll()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
