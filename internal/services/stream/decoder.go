package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// ErrMalformedFrame is returned for payloads that do not match the topic's frame shape.
var ErrMalformedFrame = errors.New("malformed frame")

type trafficFrame struct {
	Up   *int64 `json:"up"`
	Down *int64 `json:"down"`
}

type memoryFrame struct {
	InUse   *int64 `json:"inuse"`
	OSLimit int64  `json:"oslimit"`
}

type logFrame struct {
	Type    *string `json:"type"`
	Payload *string `json:"payload"`
}

type connectionFrame struct {
	Metadata    *domain.ConnectionMetadata `json:"metadata"`
	Upload      *int64                     `json:"upload"`
	Download    *int64                     `json:"download"`
	ID          string                     `json:"id"`
	Rule        string                     `json:"rule"`
	RulePayload string                     `json:"rulePayload"`
	Start       string                     `json:"start"`
	Chains      []string                   `json:"chains"`
}

type connectionsFrame struct {
	UploadTotal   *int64            `json:"uploadTotal"`
	DownloadTotal *int64            `json:"downloadTotal"`
	Connections   []connectionFrame `json:"connections"`
	Memory        int64             `json:"memory"`
}

// Decode turns one push payload into the event expected for topic.
// Frames that fail to decode return an error wrapping ErrMalformedFrame.
func Decode(topic domain.Topic, payload []byte, at time.Time) (domain.Event, error) {
	switch topic.Kind {
	case domain.KindTraffic:
		var f trafficFrame
		if err := unmarshal(payload, &f); err != nil {
			return nil, err
		}
		if f.Up == nil || f.Down == nil {
			return nil, fmt.Errorf("%w: traffic frame needs up and down", ErrMalformedFrame)
		}
		return domain.TrafficSample{At: at, Source: topic, Upload: *f.Up, Download: *f.Down}, nil

	case domain.KindMemory:
		var f memoryFrame
		if err := unmarshal(payload, &f); err != nil {
			return nil, err
		}
		if f.InUse == nil {
			return nil, fmt.Errorf("%w: memory frame needs inuse", ErrMalformedFrame)
		}
		return domain.MemorySample{At: at, Source: topic, InUse: *f.InUse, OSLimit: f.OSLimit}, nil

	case domain.KindLogs:
		var f logFrame
		if err := unmarshal(payload, &f); err != nil {
			return nil, err
		}
		if f.Type == nil || f.Payload == nil {
			return nil, fmt.Errorf("%w: log frame needs type and payload", ErrMalformedFrame)
		}
		level, err := domain.ParseLogLevel(*f.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return domain.LogLine{At: at, Source: topic, Level: level, Message: *f.Payload}, nil

	case domain.KindConnections:
		var f connectionsFrame
		if err := unmarshal(payload, &f); err != nil {
			return nil, err
		}
		if f.UploadTotal == nil || f.DownloadTotal == nil {
			return nil, fmt.Errorf("%w: connections frame needs uploadTotal and downloadTotal", ErrMalformedFrame)
		}
		conns := make([]domain.Connection, 0, len(f.Connections))
		for i, c := range f.Connections {
			if c.ID == "" || c.Metadata == nil || c.Upload == nil || c.Download == nil {
				return nil, fmt.Errorf("%w: connection %d incomplete", ErrMalformedFrame, i)
			}
			conns = append(conns, domain.Connection{
				ID:          c.ID,
				Metadata:    *c.Metadata,
				Upload:      *c.Upload,
				Download:    *c.Download,
				Chains:      c.Chains,
				Rule:        c.Rule,
				RulePayload: c.RulePayload,
				Start:       parseStart(c.Start, at),
			})
		}
		return domain.ConnectionsSnapshot{
			At:            at,
			Source:        topic,
			Connections:   conns,
			UploadTotal:   *f.UploadTotal,
			DownloadTotal: *f.DownloadTotal,
			Memory:        f.Memory,
		}, nil

	default:
		return nil, fmt.Errorf("%w: no frame shape for topic %s", ErrMalformedFrame, topic)
	}
}

func unmarshal(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

func parseStart(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return fallback
}
