package events

import (
	"errors"
	"testing"
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

func TestToRecord(t *testing.T) {
	at := time.Unix(100, 0).UTC()
	tests := []struct {
		name string
		evt  domain.Event
		want Record
	}{
		{
			name: "transport_error",
			evt:  domain.TransportError{At: at, Source: domain.TrafficTopic(), Cause: errors.New("refused"), Attempt: 3},
			want: Record{Time: at, Kind: "transport_error", Topic: "traffic", Error: "refused", Attempt: 3},
		},
		{
			name: "state_changed",
			evt:  domain.StateChanged{At: at, Source: domain.LogsTopic(domain.LevelError), From: domain.StateConnecting, To: domain.StateOpen},
			want: Record{Time: at, Kind: "state_changed", Topic: "logs:error", From: "connecting", To: "open"},
		},
		{
			name: "exhausted",
			evt:  domain.SubscriptionExhausted{At: at, Source: domain.MemoryTopic(), Attempts: 10},
			want: Record{Time: at, Kind: "exhausted", Topic: "memory", Attempt: 10},
		},
		{
			name: "heartbeat_nil_cause",
			evt:  domain.HeartbeatFailed{At: at, Source: domain.TrafficTopic()},
			want: Record{Time: at, Kind: "heartbeat_failed", Topic: "traffic"},
		},
		{
			name: "log_line",
			evt:  domain.LogLine{At: at, Source: domain.LogsTopic(domain.LevelInfo), Level: domain.LevelWarning, Message: "dial tcp"},
			want: Record{Time: at, Kind: "log", Topic: "logs:info", Level: "warning", Message: "dial tcp"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRecord(tt.evt); got != tt.want {
				t.Fatalf("got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}
