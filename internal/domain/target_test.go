package domain

import (
	"errors"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		want    Target
		wantErr bool
	}{
		{"host_port", "127.0.0.1:9090", Target{Host: "127.0.0.1", Port: 9090, Scheme: SchemeHTTP}, false},
		{"http_url", "http://clash.lan:9090", Target{Host: "clash.lan", Port: 9090, Scheme: SchemeHTTP}, false},
		{"https_default_port", "https://clash.example.com", Target{Host: "clash.example.com", Port: 443, Scheme: SchemeHTTPS}, false},
		{"empty", "  ", Target{}, true},
		{"bad_scheme", "ftp://x:1", Target{}, true},
		{"bad_port", "x:99999", Target{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.addr, "")
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTarget) {
					t.Fatalf("err=%v want ErrInvalidTarget", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestTarget_URLsAndHeader(t *testing.T) {
	tg := Target{Host: "10.0.0.1", Port: 9090, Scheme: SchemeHTTPS, Secret: "s3cr3t"}

	if got := tg.StreamURL(LogsTopic(LevelError)).String(); got != "wss://10.0.0.1:9090/logs?level=error" {
		t.Fatalf("stream url=%q", got)
	}
	if got := tg.BaseURL().String(); got != "https://10.0.0.1:9090" {
		t.Fatalf("base url=%q", got)
	}
	if got := tg.Header().Get("Authorization"); got != "Bearer s3cr3t" {
		t.Fatalf("auth header=%q", got)
	}
	if got := tg.String(); got != "https://10.0.0.1:9090" {
		t.Fatalf("String leaks or differs: %q", got)
	}

	plain := Target{Host: "h", Port: 1}
	if got := plain.StreamURL(TrafficTopic()).String(); got != "ws://h:1/traffic" {
		t.Fatalf("plain stream url=%q", got)
	}
	if plain.Header().Get("Authorization") != "" {
		t.Fatal("no secret must mean no Authorization header")
	}
}
