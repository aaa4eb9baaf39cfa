// Package poller periodically fetches the connection list over REST and publishes it.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/ports"
)

type Poller struct {
	fetcher ports.ConnectionsFetcher
	bus     ports.EventPublisher
	logger  *zap.Logger
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func New(fetcher ports.ConnectionsFetcher, bus ports.EventPublisher, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{fetcher: fetcher, bus: bus, logger: logger, stop: make(chan struct{})}
}

// Start polls every interval until ctx ends or Stop is called. Fetch errors
// are logged and the next tick retries.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-t.C:
				p.PollOnce(ctx)
			}
		}
	}()
}

// PollOnce fetches and publishes a single snapshot.
func (p *Poller) PollOnce(ctx context.Context) {
	snap, err := p.fetcher.Connections(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("connections poll failed", zap.Error(err))
		}
		return
	}
	p.bus.Publish(ctx, snap)
}

func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}
