package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// ErrMailboxClosed is returned by Notify after Close.
var ErrMailboxClosed = errors.New("mailbox closed")

// MailboxStats counts events handed to the wrapped observer and events dropped
// because the queue was full.
type MailboxStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
}

// Mailbox decouples a slow observer from the publisher. Events go through a
// bounded FIFO queue; when it is full the newest event is dropped.
type Mailbox struct {
	next      Observer
	logger    *zap.Logger
	queue     chan domain.Event
	done      chan struct{}
	filter    func(domain.Event) bool
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// MailboxOption customizes a Mailbox.
type MailboxOption func(*Mailbox)

// WithFilter only queues events for which keep returns true.
func WithFilter(keep func(domain.Event) bool) MailboxOption {
	return func(m *Mailbox) { m.filter = keep }
}

// NewMailbox starts a worker that feeds next from a queue of size capacity.
func NewMailbox(next Observer, capacity int, logger *zap.Logger, opts ...MailboxOption) *Mailbox {
	if capacity <= 0 {
		capacity = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailbox{
		next:   next,
		logger: logger,
		queue:  make(chan domain.Event, capacity),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// Notify enqueues evt without blocking.
func (m *Mailbox) Notify(_ context.Context, evt domain.Event) error {
	if m.filter != nil && !m.filter(evt) {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrMailboxClosed
	}
	select {
	case m.queue <- evt:
	default:
		if m.dropped.Add(1) == 1 {
			m.logger.Warn("mailbox full, dropping events", zap.Int("capacity", cap(m.queue)))
		}
	}
	return nil
}

func (m *Mailbox) run() {
	defer close(m.done)
	for evt := range m.queue {
		if err := m.next.Notify(context.Background(), evt); err != nil {
			m.failed.Add(1)
			m.logger.Warn("mailbox observer failed", zap.String("kind", evt.Kind()), zap.Error(err))
			continue
		}
		m.delivered.Add(1)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (m *Mailbox) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.queue)
		m.mu.Unlock()
	})
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters.
func (m *Mailbox) Stats() MailboxStats {
	return MailboxStats{
		Delivered: m.delivered.Load(),
		Dropped:   m.dropped.Load(),
		Failed:    m.failed.Load(),
	}
}

// Connectivity keeps transport lifecycle events and drops data frames.
func Connectivity(evt domain.Event) bool {
	switch evt.(type) {
	case domain.TransportError, domain.SubscriptionExhausted, domain.HeartbeatFailed, domain.StateChanged:
		return true
	default:
		return false
	}
}
