// Package host samples the machine's own NIC byte counters and memory.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
	"github.com/vshulcz/Clashpulse/internal/services/rates"
)

// Sink receives host samples, normally a *rates.Engine.
type Sink interface {
	Observe(topic domain.Topic, upCum, downCum int64, now time.Time) rates.Rate
	SetGauge(topic domain.Topic, value int64, now time.Time)
}

// NetCounters reads the sum of all interfaces through gopsutil.
type NetCounters struct{}

var _ ports.CounterSource = NetCounters{}

func (NetCounters) Counters(ctx context.Context) (sent, recv int64, err error) {
	stats, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range stats {
		sent += int64(s.BytesSent)
		recv += int64(s.BytesRecv)
	}
	return sent, recv, nil
}

// Collector periodically feeds host counters into a Sink under domain.HostTopic.
type Collector struct {
	source  ports.CounterSource
	sink    Sink
	logger  *zap.Logger
	now     func() time.Time
	memUsed func(ctx context.Context) (int64, error)
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func New(source ports.CounterSource, sink Sink, logger *zap.Logger) *Collector {
	if source == nil {
		source = NetCounters{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		source:  source,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		memUsed: virtualMemoryUsed,
		stop:    make(chan struct{}),
	}
}

func virtualMemoryUsed(ctx context.Context) (int64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return int64(vm.Used), nil
}

// Start samples once immediately and then every interval until ctx ends or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	c.sample(ctx)
	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				c.sample(ctx)
			}
		}
	}()
}

func (c *Collector) sample(ctx context.Context) {
	now := c.now()
	sent, recv, err := c.source.Counters(ctx)
	if err != nil {
		c.logger.Debug("host counters unavailable", zap.Error(err))
	} else {
		c.sink.Observe(domain.HostTopic(), sent, recv, now)
	}
	if used, err := c.memUsed(ctx); err == nil {
		c.sink.SetGauge(domain.HostTopic(), used, now)
	}
}

// Stop halts the sampling goroutine and waits for it.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}
