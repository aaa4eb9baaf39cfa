// Package events carries decoded stream events from producers to consumers.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/pkg/observer"
)

// Observer receives domain events.
type Observer = observer.Observer[domain.Event]

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc = observer.ObserverFunc[domain.Event]

// Bus is the single publish point for stream events.
//
// Observers run synchronously on the publishing goroutine. Publishes for the
// same topic are serialized, so every observer sees a topic's events in
// publish order. An observer must not publish to the topic it is handling.
type Bus struct {
	subject *observer.Subject[domain.Event]
	lanes   map[domain.Topic]*sync.Mutex
	logger  *zap.Logger
	mu      sync.Mutex
}

// New creates a bus with optional initial observers.
func New(logger *zap.Logger, observers ...Observer) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		subject: observer.NewSubject[domain.Event](observers...),
		lanes:   make(map[domain.Topic]*sync.Mutex),
		logger:  logger,
	}
	b.subject.SetErrorHandler(func(err error) {
		b.logger.Warn("event observer failed", zap.Error(err))
	})
	return b
}

// Publish delivers evt to every observer. Nil events are ignored.
func (b *Bus) Publish(ctx context.Context, evt domain.Event) {
	if b == nil || evt == nil {
		return
	}
	lane := b.lane(evt.Topic())
	lane.Lock()
	defer lane.Unlock()
	b.subject.Publish(ctx, evt)
}

func (b *Bus) lane(t domain.Topic) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.lanes[t]
	if !ok {
		l = &sync.Mutex{}
		b.lanes[t] = l
	}
	return l
}

// Attach registers observers for the lifetime of the bus.
func (b *Bus) Attach(observers ...Observer) {
	b.subject.Attach(observers...)
}

// OnEvent registers fn and returns a func that removes it.
func (b *Bus) OnEvent(fn func(domain.Event)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	return b.subject.Subscribe(ObserverFunc(func(_ context.Context, evt domain.Event) error {
		fn(evt)
		return nil
	}))
}

// Observers reports how many observers are registered.
func (b *Bus) Observers() int {
	return b.subject.Len()
}
