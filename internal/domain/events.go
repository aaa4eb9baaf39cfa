package domain

import (
	"fmt"
	"time"
)

// SubscriptionState is the lifecycle state of one topic subscription.
type SubscriptionState int

const (
	StateIdle SubscriptionState = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s SubscriptionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s SubscriptionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SubscriptionState) UnmarshalText(b []byte) error {
	for _, v := range []SubscriptionState{StateIdle, StateConnecting, StateOpen, StateReconnecting} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown subscription state %q", b)
}

// Event is the closed set of values published on the event bus.
type Event interface {
	Topic() Topic
	Kind() string
	isEvent()
}

// TrafficSample holds daemon-reported speeds in bytes per second.
type TrafficSample struct {
	At       time.Time
	Source   Topic
	Upload   int64
	Download int64
}

// MemorySample holds the daemon's memory usage in bytes.
type MemorySample struct {
	At      time.Time
	Source  Topic
	InUse   int64
	OSLimit int64
}

// LogLine is one daemon log entry.
type LogLine struct {
	At      time.Time
	Source  Topic
	Level   LogLevel
	Message string
}

// ConnectionsSnapshot lists active connections with cumulative byte totals.
type ConnectionsSnapshot struct {
	At            time.Time
	Source        Topic
	Connections   []Connection
	UploadTotal   int64
	DownloadTotal int64
	Memory        int64
}

// TransportError reports a dial/read/write failure; the subscription retries.
type TransportError struct {
	At      time.Time
	Cause   error
	Source  Topic
	Attempt int
}

// SubscriptionExhausted is published once when retries run out.
type SubscriptionExhausted struct {
	At       time.Time
	Source   Topic
	Attempts int
}

// HeartbeatFailed reports a failed liveness ping. It does not change state.
type HeartbeatFailed struct {
	At     time.Time
	Cause  error
	Source Topic
}

// StateChanged reports a subscription lifecycle transition.
type StateChanged struct {
	At     time.Time
	Source Topic
	From   SubscriptionState
	To     SubscriptionState
}

func (e TrafficSample) Topic() Topic         { return e.Source }
func (e MemorySample) Topic() Topic          { return e.Source }
func (e LogLine) Topic() Topic               { return e.Source }
func (e ConnectionsSnapshot) Topic() Topic   { return e.Source }
func (e TransportError) Topic() Topic        { return e.Source }
func (e SubscriptionExhausted) Topic() Topic { return e.Source }
func (e HeartbeatFailed) Topic() Topic       { return e.Source }
func (e StateChanged) Topic() Topic          { return e.Source }

func (TrafficSample) Kind() string         { return "traffic" }
func (MemorySample) Kind() string          { return "memory" }
func (LogLine) Kind() string               { return "log" }
func (ConnectionsSnapshot) Kind() string   { return "connections" }
func (TransportError) Kind() string        { return "transport_error" }
func (SubscriptionExhausted) Kind() string { return "exhausted" }
func (HeartbeatFailed) Kind() string       { return "heartbeat_failed" }
func (StateChanged) Kind() string          { return "state_changed" }

func (TrafficSample) isEvent()         {}
func (MemorySample) isEvent()          {}
func (LogLine) isEvent()               {}
func (ConnectionsSnapshot) isEvent()   {}
func (TransportError) isEvent()        {}
func (SubscriptionExhausted) isEvent() {}
func (HeartbeatFailed) isEvent()       {}
func (StateChanged) isEvent()          {}
