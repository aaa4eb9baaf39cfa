package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

var (
	errDialRefused = errors.New("connection refused")
	errConnClosed  = errors.New("use of closed connection")
)

type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	owner     *fakeDialer
	pingErr   atomic.Value
	pings     atomic.Int32
	closeOnce sync.Once
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) Ping(context.Context) error {
	c.pings.Add(1)
	if err, ok := c.pingErr.Load().(error); ok {
		return err
	}
	return nil
}

// Close blocks while the dialer holds a close gate, like a websocket close
// handshake waiting on a slow peer.
func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.owner.closing.Add(1)
		if gate := c.owner.gate(); gate != nil {
			<-gate
		}
		close(c.closed)
		c.owner.live.Add(-1)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer fails while fail returns an error and records every dial.
type fakeDialer struct {
	fail      func(n int) error
	conns     []*fakeConn
	addrs     []string
	headers   []http.Header
	live      atomic.Int32
	maxLive   atomic.Int32
	closing   atomic.Int32
	mu        sync.Mutex
	dials     int
	overlaps  int
	pingError error
	closeGate chan struct{}
}

// holdClose makes every Close block until the returned release is called.
func (d *fakeDialer) holdClose() (release func()) {
	gate := make(chan struct{})
	d.mu.Lock()
	d.closeGate = gate
	d.mu.Unlock()
	return sync.OnceFunc(func() {
		d.mu.Lock()
		d.closeGate = nil
		d.mu.Unlock()
		close(gate)
	})
}

func (d *fakeDialer) gate() chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeGate
}

func (d *fakeDialer) Dial(ctx context.Context, addr string, header http.Header) (ports.StreamConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.addrs = append(d.addrs, addr)
	d.headers = append(d.headers, header)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.fail != nil {
		if err := d.fail(d.dials); err != nil {
			return nil, err
		}
	}
	for _, c := range d.conns {
		if !c.isClosed() {
			d.overlaps++
		}
	}
	c := &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{}), owner: d}
	if d.pingError != nil {
		c.pingErr.Store(d.pingError)
	}
	d.conns = append(d.conns, c)
	if n := d.live.Add(1); n > d.maxLive.Load() {
		d.maxLive.Store(n)
	}
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type recorder struct {
	events []domain.Event
	mu     sync.Mutex
}

func (r *recorder) Publish(_ context.Context, evt domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) ofKind(kind string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count(kind string) int {
	return len(r.ofKind(kind))
}

func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(1 * time.Millisecond)
	}
	return false
}
