package events

import (
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// Record is the flat JSON form of an event used by sinks outside the process.
type Record struct {
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	Topic    string    `json:"topic"`
	Error    string    `json:"error,omitempty"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Level    string    `json:"level,omitempty"`
	Message  string    `json:"message,omitempty"`
	Attempt  int       `json:"attempt,omitempty"`
	Upload   int64     `json:"upload,omitempty"`
	Download int64     `json:"download,omitempty"`
}

// ToRecord flattens evt. Connection lists are reduced to their totals.
func ToRecord(evt domain.Event) Record {
	r := Record{Kind: evt.Kind(), Topic: evt.Topic().String()}
	switch e := evt.(type) {
	case domain.TrafficSample:
		r.Time, r.Upload, r.Download = e.At, e.Upload, e.Download
	case domain.MemorySample:
		r.Time, r.Upload = e.At, e.InUse
	case domain.LogLine:
		r.Time, r.Level, r.Message = e.At, string(e.Level), e.Message
	case domain.ConnectionsSnapshot:
		r.Time, r.Upload, r.Download = e.At, e.UploadTotal, e.DownloadTotal
	case domain.TransportError:
		r.Time, r.Attempt = e.At, e.Attempt
		if e.Cause != nil {
			r.Error = e.Cause.Error()
		}
	case domain.SubscriptionExhausted:
		r.Time, r.Attempt = e.At, e.Attempts
	case domain.HeartbeatFailed:
		r.Time = e.At
		if e.Cause != nil {
			r.Error = e.Cause.Error()
		}
	case domain.StateChanged:
		r.Time, r.From, r.To = e.At, e.From.String(), e.To.String()
	}
	return r
}
