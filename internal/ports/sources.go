package ports

import (
	"context"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// ConnectionsFetcher polls the daemon for the active connection list.
type ConnectionsFetcher interface {
	Connections(ctx context.Context) (domain.ConnectionsSnapshot, error)
}

// CounterSource reports cumulative sent/received byte counters.
type CounterSource interface {
	Counters(ctx context.Context) (sent, recv int64, err error)
}
