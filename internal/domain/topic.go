package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// TopicKind names a logical telemetry stream.
type TopicKind string

const (
	// KindTraffic carries per-second upload/download speeds.
	KindTraffic TopicKind = "traffic"
	// KindMemory carries the daemon's memory usage.
	KindMemory TopicKind = "memory"
	// KindLogs carries daemon log lines filtered by level.
	KindLogs TopicKind = "logs"
	// KindConnections carries active connection snapshots with cumulative totals.
	KindConnections TopicKind = "connections"
	// KindHost is a local-only key for host NIC counters; it has no daemon stream.
	KindHost TopicKind = "host"
)

// LogLevel is the daemon log severity.
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
	LevelSilent  LogLevel = "silent"
)

// ParseLogLevel accepts the daemon level names (and "warn" as an alias).
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "silent":
		return LevelSilent, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Rank orders levels from most to least verbose; unknown levels rank lowest.
func (l LogLevel) Rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	case LevelSilent:
		return 4
	default:
		return -1
	}
}

// Topic identifies one logical stream. It is comparable and used as a map key.
type Topic struct {
	Kind  TopicKind
	Level LogLevel
}

func TrafficTopic() Topic     { return Topic{Kind: KindTraffic} }
func MemoryTopic() Topic      { return Topic{Kind: KindMemory} }
func ConnectionsTopic() Topic { return Topic{Kind: KindConnections} }
func HostTopic() Topic        { return Topic{Kind: KindHost} }

// LogsTopic returns the log stream for level; an empty level means info.
func LogsTopic(level LogLevel) Topic {
	if level == "" {
		level = LevelInfo
	}
	return Topic{Kind: KindLogs, Level: level}
}

// ParseTopic parses "traffic", "memory", "connections", "host", "logs" or "logs:<level>".
func ParseTopic(s string) (Topic, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	kind, level, hasLevel := strings.Cut(s, ":")
	switch TopicKind(kind) {
	case KindTraffic, KindMemory, KindConnections, KindHost:
		if hasLevel {
			return Topic{}, fmt.Errorf("%w: %q takes no level", ErrInvalidTopic, s)
		}
		return Topic{Kind: TopicKind(kind)}, nil
	case KindLogs:
		if !hasLevel {
			return LogsTopic(""), nil
		}
		lvl, err := ParseLogLevel(level)
		if err != nil {
			return Topic{}, fmt.Errorf("%w: %v", ErrInvalidTopic, err)
		}
		return LogsTopic(lvl), nil
	default:
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, s)
	}
}

// Validate reports whether the topic is well formed.
func (t Topic) Validate() error {
	switch t.Kind {
	case KindTraffic, KindMemory, KindConnections, KindHost:
		if t.Level != "" {
			return fmt.Errorf("%w: %s takes no level", ErrInvalidTopic, t.Kind)
		}
		return nil
	case KindLogs:
		if t.Level.Rank() < 0 {
			return fmt.Errorf("%w: bad log level %q", ErrInvalidTopic, t.Level)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, t.Kind)
	}
}

// Streamable reports whether the daemon exposes a push stream for the topic.
func (t Topic) Streamable() bool {
	return t.Kind != KindHost && t.Validate() == nil
}

// Path is the daemon endpoint path for the topic.
func (t Topic) Path() string {
	return "/" + string(t.Kind)
}

// Query holds the endpoint query parameters, nil when there are none.
func (t Topic) Query() url.Values {
	if t.Kind != KindLogs {
		return nil
	}
	return url.Values{"level": {string(t.Level)}}
}

func (t Topic) String() string {
	if t.Kind == KindLogs {
		return string(t.Kind) + ":" + string(t.Level)
	}
	return string(t.Kind)
}

// MarshalText lets topics be used as JSON object keys and string fields.
func (t Topic) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (t *Topic) UnmarshalText(b []byte) error {
	p, err := ParseTopic(string(b))
	if err != nil {
		return err
	}
	*t = p
	return nil
}
