package domain

import (
	"errors"
	"testing"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in      string
		want    Topic
		wantErr bool
	}{
		{in: "traffic", want: TrafficTopic()},
		{in: " Memory ", want: MemoryTopic()},
		{in: "connections", want: ConnectionsTopic()},
		{in: "host", want: HostTopic()},
		{in: "logs", want: LogsTopic(LevelInfo)},
		{in: "logs:warn", want: LogsTopic(LevelWarning)},
		{in: "logs:debug", want: LogsTopic(LevelDebug)},
		{in: "logs:loud", wantErr: true},
		{in: "traffic:info", wantErr: true},
		{in: "", wantErr: true},
		{in: "proxies", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTopic(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTopic) {
					t.Fatalf("ParseTopic(%q) err=%v, want ErrInvalidTopic", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTopic(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseTopic(%q)=%+v want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTopic_EqualityAsMapKey(t *testing.T) {
	m := map[Topic]int{}
	m[LogsTopic(LevelInfo)]++
	m[LogsTopic("")]++
	m[LogsTopic(LevelError)]++
	m[TrafficTopic()]++

	if m[LogsTopic(LevelInfo)] != 2 {
		t.Fatalf("logs:info count=%d want 2", m[LogsTopic(LevelInfo)])
	}
	if len(m) != 3 {
		t.Fatalf("distinct topics=%d want 3", len(m))
	}
}

func TestTopic_ValidateAndStreamable(t *testing.T) {
	if err := (Topic{Kind: "bogus"}).Validate(); !errors.Is(err, ErrInvalidTopic) {
		t.Fatalf("bogus kind err=%v", err)
	}
	if err := (Topic{Kind: KindLogs, Level: "loud"}).Validate(); !errors.Is(err, ErrInvalidTopic) {
		t.Fatalf("bad level err=%v", err)
	}
	if err := (Topic{Kind: KindMemory, Level: LevelInfo}).Validate(); !errors.Is(err, ErrInvalidTopic) {
		t.Fatalf("memory with level err=%v", err)
	}
	if HostTopic().Streamable() {
		t.Fatal("host topic must not be streamable")
	}
	if !LogsTopic(LevelError).Streamable() {
		t.Fatal("logs topic must be streamable")
	}
}

func TestTopic_PathQueryString(t *testing.T) {
	lt := LogsTopic(LevelWarning)
	if lt.Path() != "/logs" {
		t.Fatalf("path=%q", lt.Path())
	}
	if got := lt.Query().Get("level"); got != "warning" {
		t.Fatalf("level query=%q", got)
	}
	if lt.String() != "logs:warning" {
		t.Fatalf("string=%q", lt.String())
	}
	if TrafficTopic().Query() != nil {
		t.Fatal("traffic must have no query")
	}

	var back Topic
	b, _ := lt.MarshalText()
	if err := back.UnmarshalText(b); err != nil || back != lt {
		t.Fatalf("text roundtrip got %+v err=%v", back, err)
	}
}

func TestLogLevel_Rank(t *testing.T) {
	if !(LevelDebug.Rank() < LevelInfo.Rank() && LevelInfo.Rank() < LevelWarning.Rank() &&
		LevelWarning.Rank() < LevelError.Rank()) {
		t.Fatal("levels not ordered by verbosity")
	}
	if LogLevel("x").Rank() != -1 {
		t.Fatal("unknown level should rank -1")
	}
}
