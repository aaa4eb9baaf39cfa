package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	memrepo "github.com/vshulcz/Clashpulse/internal/adapters/repository/memory"
	"github.com/vshulcz/Clashpulse/internal/config"
	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

type pipeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *pipeConn) ReadFrame() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *pipeConn) Ping(context.Context) error { return nil }

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// pipeDialer hands out connections that emit one traffic frame and then idle.
type pipeDialer struct {
	mu    sync.Mutex
	addrs []string
}

func (d *pipeDialer) Dial(_ context.Context, addr string, _ http.Header) (ports.StreamConn, error) {
	d.mu.Lock()
	d.addrs = append(d.addrs, addr)
	d.mu.Unlock()
	c := &pipeConn{frames: make(chan []byte, 1), closed: make(chan struct{})}
	c.frames <- []byte(`{"up":1024,"down":2048}`)
	return c, nil
}

func (d *pipeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addrs...)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func testConfig(t *testing.T) config.PulseConfig {
	t.Helper()
	target, err := domain.ParseTarget("127.0.0.1:9090", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	return config.PulseConfig{
		Address:           "127.0.0.1:0",
		Backend:           target,
		Topics:            []domain.Topic{domain.TrafficTopic()},
		HeartbeatInterval: time.Hour,
		HistorySize:       60,
		LogBuffer:         16,
		ProfilesFile:      filepath.Join(t.TempDir(), "backends.json"),
		LogLevel:          "info",
	}
}

func Test_newLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := newLogger(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger: %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %v should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && l.Core().Enabled(tt.enabled-1) {
				t.Errorf("level %v should be disabled", tt.enabled-1)
			}
		})
	}
}

func Test_buildRepo_MemoryRestoresProfiles(t *testing.T) {
	cfg := testConfig(t)
	data := `[{"id":"5a0c7f6e-3f59-4a8e-9b9e-6a8d1f0c2b11","label":"home","target":{"host":"10.0.0.2","port":9090,"scheme":"http"},"active":true}]`
	if err := os.WriteFile(cfg.ProfilesFile, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	repo, persister, closer := buildRepo(context.Background(), cfg, zap.NewNop())
	defer closer()

	if _, ok := repo.(*memrepo.Repo); !ok {
		t.Fatalf("repo = %T, want memory", repo)
	}
	if persister == nil {
		t.Fatal("memory repo needs a persister")
	}
	if got := describeRepo(repo); got != "memory" {
		t.Errorf("describeRepo = %q", got)
	}
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Label != "home" || !list[0].Active {
		t.Fatalf("restored = %+v", list)
	}
}

func Test_buildRepo_MissingFileStartsEmpty(t *testing.T) {
	cfg := testConfig(t)
	repo, _, closer := buildRepo(context.Background(), cfg, zap.NewNop())
	defer closer()

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty repo, got %d", len(list))
	}
}

func Test_newApp_InvalidWebhook(t *testing.T) {
	cfg := testConfig(t)
	cfg.WebhookURL = "::not a url"
	if _, err := newApp(context.Background(), cfg, zap.NewNop(), &pipeDialer{}); err == nil {
		t.Fatal("expected webhook error")
	}
}

func Test_newApp_Routes(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIToken = "tok"
	a, err := newApp(context.Background(), cfg, zap.NewNop(), &pipeDialer{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	h := a.server.Handler

	tests := []struct {
		name   string
		path   string
		auth   bool
		status int
		body   string
	}{
		{"ping is open", "/ping", false, http.StatusOK, ""},
		{"backends need token", "/backends", false, http.StatusUnauthorized, ""},
		{"backends with token", "/backends", true, http.StatusOK, "[]"},
		{"metrics", "/metrics", true, http.StatusOK, "go_goroutines"},
		{"no subscriptions yet", "/subscriptions", true, http.StatusOK, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer tok")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("GET %s = %d, want %d (%s)", tt.path, rec.Code, tt.status, rec.Body.String())
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("GET %s body %q does not contain %q", tt.path, rec.Body.String(), tt.body)
			}
		})
	}
}

func Test_app_runStreamsAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	d := &pipeDialer{}
	a, err := newApp(context.Background(), cfg, zap.NewNop(), d)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	waitUntil(t, 2*time.Second, func() bool {
		snap, ok := a.engine.Snapshot(domain.TrafficTopic())
		return ok && len(snap.Upload) == 1
	})
	snap, _ := a.engine.Snapshot(domain.TrafficTopic())
	if snap.Current.Upload != 1024 || snap.Current.Download != 2048 {
		t.Errorf("current = %+v", snap.Current)
	}
	if addrs := d.dialed(); len(addrs) != 1 || !strings.Contains(addrs[0], "/traffic") {
		t.Errorf("dialed = %v", addrs)
	}

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backends", nil))
	var list []struct {
		Active    bool `json:"active"`
		HasSecret bool `json:"hasSecret"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode backends: %v", err)
	}
	if len(list) != 1 || !list[0].Active || !list[0].HasSecret {
		t.Fatalf("fallback backend = %+v", list)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if len(a.registry.AllStats()) != 0 {
		t.Error("subscriptions left after shutdown")
	}
	b, err := os.ReadFile(cfg.ProfilesFile)
	if err != nil {
		t.Fatalf("profiles file: %v", err)
	}
	if !strings.Contains(string(b), "127.0.0.1") {
		t.Errorf("profiles file = %s", b)
	}
}
