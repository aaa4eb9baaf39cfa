// Package observer provides a small generic fan-out primitive.
package observer

import (
	"context"
	"sync"
)

// Observer defines the callback contract for receiving published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a standalone function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify executes the wrapped function.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Publisher publishes events to downstream observers.
type Publisher[T any] interface {
	Publish(context.Context, T)
}

type registration[T any] struct {
	obs Observer[T]
	id  uint64
}

// Subject coordinates observer registrations and event fan-out.
// Observers are notified synchronously in registration order.
type Subject[T any] struct {
	onError   func(error)
	observers []registration[T]
	mu        sync.RWMutex
	nextID    uint64
}

// NewSubject constructs a Subject with optional initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Publish invokes every observer with the provided event.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}

	s.mu.RLock()
	regs := append([]registration[T](nil), s.observers...)
	errHandler := s.onError
	s.mu.RUnlock()

	for _, r := range regs {
		if err := r.obs.Notify(ctx, evt); err != nil && errHandler != nil {
			errHandler(err)
		}
	}
}

// Attach registers additional observers to the subject. Nil observers are skipped.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil || len(observers) == 0 {
		return
	}
	s.mu.Lock()
	for _, obs := range observers {
		if obs == nil {
			continue
		}
		s.nextID++
		s.observers = append(s.observers, registration[T]{id: s.nextID, obs: obs})
	}
	s.mu.Unlock()
}

// Subscribe registers obs and returns a func that detaches it.
// The returned func is idempotent; events already being delivered may still reach obs.
func (s *Subject[T]) Subscribe(obs Observer[T]) (cancel func()) {
	if s == nil || obs == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, registration[T]{id: id, obs: obs})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.detach(id) })
	}
}

func (s *Subject[T]) detach(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.observers {
		if r.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// Len reports the number of registered observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// SetErrorHandler configures a callback for observer failures.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}
