package domain

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Scheme is the daemon's HTTP scheme; streams use the matching ws/wss scheme.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// Target is an immutable connection target for one backend.
type Target struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Scheme Scheme `json:"scheme"`
	Secret string `json:"secret,omitempty"`
}

// ParseTarget accepts "host:port" or an http(s) URL.
func ParseTarget(addr, secret string) (Target, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Target{}, fmt.Errorf("%w: empty address", ErrInvalidTarget)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	scheme := Scheme(strings.ToLower(u.Scheme))
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	port := 80
	if scheme == SchemeHTTPS {
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Target{}, fmt.Errorf("%w: bad port %q", ErrInvalidTarget, p)
		}
		port = n
	}
	t := Target{Host: u.Hostname(), Port: port, Scheme: scheme, Secret: strings.TrimSpace(secret)}
	return t, t.Validate()
}

// Validate checks the fields needed to build URLs.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidTarget)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidTarget, t.Port)
	}
	switch t.Scheme {
	case SchemeHTTP, SchemeHTTPS, "":
		return nil
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, t.Scheme)
	}
}

func (t Target) hostPort() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// BaseURL is the REST API root, e.g. http://127.0.0.1:9090.
func (t Target) BaseURL() *url.URL {
	scheme := t.Scheme
	if scheme == "" {
		scheme = SchemeHTTP
	}
	return &url.URL{Scheme: string(scheme), Host: t.hostPort()}
}

// StreamURL is the websocket address of topic on this target.
func (t Target) StreamURL(topic Topic) *url.URL {
	scheme := "ws"
	if t.Scheme == SchemeHTTPS {
		scheme = "wss"
	}
	u := &url.URL{Scheme: scheme, Host: t.hostPort(), Path: topic.Path()}
	if q := topic.Query(); q != nil {
		u.RawQuery = q.Encode()
	}
	return u
}

// Header carries the bearer credential, if any.
func (t Target) Header() http.Header {
	h := make(http.Header)
	if t.Secret != "" {
		h.Set("Authorization", "Bearer "+t.Secret)
	}
	return h
}

// String never includes the secret.
func (t Target) String() string {
	return t.BaseURL().String()
}
