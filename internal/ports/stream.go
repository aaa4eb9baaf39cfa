package ports

import (
	"context"
	"net/http"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// StreamDialer opens a push stream to addr.
type StreamDialer interface {
	Dial(ctx context.Context, addr string, header http.Header) (StreamConn, error)
}

// StreamConn is one open push stream. Close must unblock a pending ReadFrame
// and be safe to call more than once.
type StreamConn interface {
	ReadFrame() ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher is the single publish point for domain events.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event)
}
