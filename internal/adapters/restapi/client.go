// Package restapi is a one-shot client for the daemon's REST endpoints.
package restapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/misc"
	"github.com/vshulcz/Clashpulse/internal/ports"
	"github.com/vshulcz/Clashpulse/internal/services/stream"
)

// Client talks to one daemon at a time; Retarget switches it.
type Client struct {
	hc     *http.Client
	logger *zap.Logger
	target atomic.Pointer[domain.Target]
	now    func() time.Time
	delays []time.Duration
}

var _ ports.ConnectionsFetcher = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithRetry sets the retry schedule for transient failures.
func WithRetry(delays []time.Duration) Option {
	return func(c *Client) { c.delays = delays }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(target domain.Target, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{Timeout: 10 * time.Second},
		logger: zap.NewNop(),
		now:    time.Now,
		delays: misc.DefaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Retarget(target)
	return c
}

// Retarget points subsequent requests at t.
func (c *Client) Retarget(t domain.Target) {
	c.target.Store(&t)
}

func (c *Client) Target() domain.Target {
	return *c.target.Load()
}

func (c *Client) endpoint(t domain.Target, path string) string {
	u := t.BaseURL()
	u.Path = path
	return u.String()
}

type versionResponse struct {
	Version string `json:"version"`
	Premium bool   `json:"premium"`
	Meta    bool   `json:"meta"`
}

// Version returns the daemon's reported version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.version(ctx, c.Target())
}

// CheckVersion reports the version of an arbitrary target without retargeting.
func (c *Client) CheckVersion(ctx context.Context, t domain.Target) (string, error) {
	return c.version(ctx, t)
}

func (c *Client) version(ctx context.Context, t domain.Target) (string, error) {
	body, err := c.do(ctx, t, http.MethodGet, "/version")
	if err != nil {
		return "", err
	}
	var v versionResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("decode version: %w", err)
	}
	if v.Version == "" {
		return "", errors.New("decode version: empty version")
	}
	return v.Version, nil
}

// Connections fetches the active connection list once.
func (c *Client) Connections(ctx context.Context) (domain.ConnectionsSnapshot, error) {
	body, err := c.do(ctx, c.Target(), http.MethodGet, "/connections")
	if err != nil {
		return domain.ConnectionsSnapshot{}, err
	}
	evt, err := stream.Decode(domain.ConnectionsTopic(), body, c.now())
	if err != nil {
		return domain.ConnectionsSnapshot{}, err
	}
	return evt.(domain.ConnectionsSnapshot), nil
}

// CloseConnection asks the daemon to drop one connection.
func (c *Client) CloseConnection(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrNotFound
	}
	_, err := c.do(ctx, c.Target(), http.MethodDelete, "/connections/"+id)
	return err
}

// CloseAllConnections asks the daemon to drop every connection.
func (c *Client) CloseAllConnections(ctx context.Context) error {
	_, err := c.do(ctx, c.Target(), http.MethodDelete, "/connections")
	return err
}

func (c *Client) do(ctx context.Context, t domain.Target, method, path string) (body []byte, retErr error) {
	resp, err := c.sendWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(t, path), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		for k, v := range t.Header() {
			req.Header[k] = v
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	body, err = readBody(resp)
	if err != nil {
		return nil, err
	}
	if err := checkHTTPStatus(resp); err != nil {
		c.logger.Debug("daemon request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return body, nil
}

type httpStatusError struct {
	msg  string
	code int
}

func (e *httpStatusError) Error() string {
	return e.msg
}

// StatusCode extracts the HTTP status from an error returned by Client, or 0.
func StatusCode(err error) int {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

func isRetryableHTTP(err error) bool {
	if err == nil {
		return false
	}
	var se *httpStatusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		default:
			return false
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func (c *Client) sendWithRetry(ctx context.Context, mkReq func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	op := func() error {
		req, err := mkReq()
		if err != nil {
			return err
		}
		r, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		if isRetryableHTTP(checkHTTPStatus(r)) {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			return checkHTTPStatus(r)
		}
		resp = r
		return nil
	}
	if err := misc.Retry(ctx, c.delays, isRetryableHTTP, op); err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	return resp, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("bad gzip: %w", err)
		}
		defer func() {
			_ = gr.Close()
		}()
		r = gr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpStatusError{code: resp.StatusCode, msg: fmt.Sprintf("daemon status: %s", resp.Status)}
	}
	return nil
}
