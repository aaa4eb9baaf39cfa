package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/services/events"
)

func TestClient_PostsRecord(t *testing.T) {
	var (
		mu       sync.Mutex
		received events.Record
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cli, err := New(ts.URL, ts.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	evt := domain.SubscriptionExhausted{At: time.Unix(1, 0), Source: domain.TrafficTopic(), Attempts: 10}
	if err := cli.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Kind != "exhausted" || received.Attempt != 10 || received.Topic != "traffic" {
		t.Fatalf("received %+v", received)
	}
}

func TestClient_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cli, err := New(ts.URL, ts.Client())
	if err != nil {
		t.Fatal(err)
	}
	if err := cli.Notify(context.Background(), domain.HeartbeatFailed{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestNew_Validation(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url"} {
		if _, err := New(raw, nil); err == nil {
			t.Fatalf("New(%q) expected error", raw)
		}
	}
	var c *Client
	if err := c.Notify(context.Background(), domain.HeartbeatFailed{}); err != nil {
		t.Fatalf("nil client Notify: %v", err)
	}
}
