package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// heartbeat pings conn every interval until ctx ends. A failed ping is
// reported and logged; it never closes the stream.
func (s *subscription) heartbeat(ctx context.Context, conn ports.StreamConn) {
	interval := s.reg.heartbeat
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		pctx, cancel := context.WithTimeout(ctx, interval)
		err := conn.Ping(pctx)
		cancel()
		if err == nil || ctx.Err() != nil {
			continue
		}
		s.hbFailures.Add(1)
		s.logger.Warn("heartbeat failed", zap.Error(err))
		s.publish(ctx, domain.HeartbeatFailed{At: s.reg.now(), Source: s.topic, Cause: err})
	}
}
