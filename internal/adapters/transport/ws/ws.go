// Package ws implements the stream transport on gorilla/websocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vshulcz/Clashpulse/internal/ports"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingTimeout      = 5 * time.Second
	closeGrace              = time.Second
)

// Dialer opens websocket streams.
type Dialer struct {
	dialer *websocket.Dialer
}

var _ ports.StreamDialer = (*Dialer)(nil)

func NewDialer(handshakeTimeout time.Duration) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &Dialer{dialer: &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}}
}

// Dial performs the websocket handshake. A rejected handshake reports the HTTP status.
func (d *Dialer) Dial(ctx context.Context, addr string, header http.Header) (ports.StreamConn, error) {
	c, resp, err := d.dialer.DialContext(ctx, addr, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial %s: %w (status %s)", addr, err, resp.Status)
		}
		return nil, fmt.Errorf("ws dial %s: %w", addr, err)
	}
	return &Conn{ws: c}, nil
}

// Conn is one websocket stream.
type Conn struct {
	ws        *websocket.Conn
	closeErr  error
	closeOnce sync.Once
}

var _ ports.StreamConn = (*Conn)(nil)

// ReadFrame returns the next text or binary message; control and other
// message types are skipped.
func (c *Conn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("stream closed by peer: %w", err)
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Ping writes a ping control frame. The deadline comes from ctx.
func (c *Conn) Ping(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultPingTimeout)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return fmt.Errorf("ping after close: %w", err)
		}
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the socket, which unblocks ReadFrame.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
