// Package rates derives bytes/sec rates from counters and keeps a rolling history per topic.
package rates

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// Rate is one upload/download throughput sample in bytes per second.
type Rate struct {
	At       time.Time `json:"at"`
	Upload   float64   `json:"upload"`
	Download float64   `json:"download"`
}

// Snapshot is a consistent copy of one topic's series.
type Snapshot struct {
	Updated  time.Time    `json:"updated"`
	Topic    domain.Topic `json:"topic"`
	Current  Rate         `json:"current"`
	Upload   []float64    `json:"upload"`
	Download []float64    `json:"download"`
	Gauge    []float64    `json:"gauge,omitempty"`
	Value    float64      `json:"value"`
}

type baseline struct {
	at   time.Time
	up   int64
	down int64
}

type series struct {
	updated  time.Time
	base     *baseline
	upload   *History
	download *History
	gauge    *History
	current  Rate
	value    float64
}

type Engine struct {
	logger   *zap.Logger
	series   map[domain.Topic]*series
	mu       sync.RWMutex
	capacity int
}

func NewEngine(capacity int, logger *zap.Logger) *Engine {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:   logger,
		series:   make(map[domain.Topic]*series),
		capacity: capacity,
	}
}

func (e *Engine) get(topic domain.Topic) *series {
	s, ok := e.series[topic]
	if !ok {
		s = &series{
			upload:   NewHistory(e.capacity),
			download: NewHistory(e.capacity),
			gauge:    NewHistory(e.capacity),
		}
		e.series[topic] = s
	}
	return s
}

// Observe turns cumulative byte counters into a rate against the previous
// observation for topic. The first observation only sets the baseline and
// yields a zero rate. Counter resets and non-positive elapsed time yield zero.
func (e *Engine) Observe(topic domain.Topic, upCum, downCum int64, now time.Time) Rate {
	upCum, downCum = clamp(upCum), clamp(downCum)

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.get(topic)

	r := Rate{At: now}
	if prev := s.base; prev != nil {
		if elapsed := now.Sub(prev.at).Seconds(); elapsed > 0 {
			r.Upload = perSecond(upCum-prev.up, elapsed)
			r.Download = perSecond(downCum-prev.down, elapsed)
		}
	}
	s.base = &baseline{at: now, up: upCum, down: downCum}
	s.push(r)
	return r
}

// Record stores rates that were already computed upstream.
func (e *Engine) Record(topic domain.Topic, upRate, downRate int64, now time.Time) Rate {
	r := Rate{At: now, Upload: float64(clamp(upRate)), Download: float64(clamp(downRate))}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.get(topic).push(r)
	return r
}

// SetGauge stores a point-in-time value such as memory in use.
func (e *Engine) SetGauge(topic domain.Topic, value int64, now time.Time) {
	v := float64(clamp(value))

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.get(topic)
	s.value = v
	s.gauge.Push(v)
	s.updated = now
}

func (s *series) push(r Rate) {
	s.current = r
	s.upload.Push(r.Upload)
	s.download.Push(r.Download)
	s.updated = r.At
}

func (e *Engine) Snapshot(topic domain.Topic) (Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.series[topic]
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(topic), true
}

// Snapshots returns every topic's series ordered by topic name.
func (e *Engine) Snapshots() []Snapshot {
	e.mu.RLock()
	out := make([]Snapshot, 0, len(e.series))
	for t, s := range e.series {
		out = append(out, s.snapshot(t))
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Topic.String() < out[j].Topic.String() })
	return out
}

func (s *series) snapshot(topic domain.Topic) Snapshot {
	snap := Snapshot{
		Topic:    topic,
		Current:  s.current,
		Updated:  s.updated,
		Upload:   s.upload.Values(),
		Download: s.download.Values(),
		Value:    s.value,
	}
	if s.gauge.Len() > 0 {
		snap.Gauge = s.gauge.Values()
	}
	return snap
}

// Reset drops the baseline and history of topic.
func (e *Engine) Reset(topic domain.Topic) {
	e.mu.Lock()
	delete(e.series, topic)
	e.mu.Unlock()
}

func (e *Engine) ResetAll() {
	e.mu.Lock()
	e.series = make(map[domain.Topic]*series)
	e.mu.Unlock()
	e.logger.Debug("rate history cleared")
}

// Notify feeds counter-bearing events into the engine.
func (e *Engine) Notify(_ context.Context, evt domain.Event) error {
	switch ev := evt.(type) {
	case domain.TrafficSample:
		e.Record(ev.Source, ev.Upload, ev.Download, ev.At)
	case domain.ConnectionsSnapshot:
		e.Observe(ev.Source, ev.UploadTotal, ev.DownloadTotal, ev.At)
	case domain.MemorySample:
		e.SetGauge(ev.Source, ev.InUse, ev.At)
	}
	return nil
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func perSecond(delta int64, elapsed float64) float64 {
	if delta <= 0 {
		return 0
	}
	return float64(delta) / elapsed
}
