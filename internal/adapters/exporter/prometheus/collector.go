// Package prometheus exposes rates and subscription health as Prometheus metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/services/rates"
	"github.com/vshulcz/Clashpulse/internal/services/stream"
)

const namespace = "clashpulse"

// RateSource is satisfied by *rates.Engine.
type RateSource interface {
	Snapshots() []rates.Snapshot
}

// StatsSource is satisfied by *stream.Registry.
type StatsSource interface {
	AllStats() []stream.Stats
}

// Collector reads the engine and registry on every scrape.
type Collector struct {
	rates RateSource
	stats StatsSource

	upload   *prometheus.Desc
	download *prometheus.Desc
	gauge    *prometheus.Desc
	state    *prometheus.Desc
	attempts *prometheus.Desc
	frames   *prometheus.Desc
	dropped  *prometheus.Desc
	hbFails  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(r RateSource, s StatsSource) *Collector {
	topic := []string{"topic"}
	return &Collector{
		rates:    r,
		stats:    s,
		upload:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "upload_bytes_per_second"), "Current upload rate per topic.", topic, nil),
		download: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "download_bytes_per_second"), "Current download rate per topic.", topic, nil),
		gauge:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "memory_inuse_bytes"), "Latest memory gauge per topic.", topic, nil),
		state: prometheus.NewDesc(prometheus.BuildFQName(namespace, "subscription", "state"),
			"1 for the current lifecycle state of a subscription.", []string{"topic", "state"}, nil),
		attempts: prometheus.NewDesc(prometheus.BuildFQName(namespace, "subscription", "attempts"), "Consecutive failed connection attempts.", topic, nil),
		frames:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "frames_total"), "Frames decoded and published.", topic, nil),
		dropped:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "frames_dropped_total"), "Frames dropped as malformed.", topic, nil),
		hbFails:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "heartbeat_failures_total"), "Failed heartbeat pings.", topic, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.upload, c.download, c.gauge, c.state, c.attempts, c.frames, c.dropped, c.hbFails} {
		ch <- d
	}
}

var states = []domain.SubscriptionState{domain.StateIdle, domain.StateConnecting, domain.StateOpen, domain.StateReconnecting}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.rates != nil {
		for _, s := range c.rates.Snapshots() {
			t := s.Topic.String()
			if len(s.Upload) > 0 {
				ch <- prometheus.MustNewConstMetric(c.upload, prometheus.GaugeValue, s.Current.Upload, t)
				ch <- prometheus.MustNewConstMetric(c.download, prometheus.GaugeValue, s.Current.Download, t)
			}
			if len(s.Gauge) > 0 {
				ch <- prometheus.MustNewConstMetric(c.gauge, prometheus.GaugeValue, s.Value, t)
			}
		}
	}
	if c.stats == nil {
		return
	}
	for _, st := range c.stats.AllStats() {
		t := st.Topic.String()
		for _, s := range states {
			v := 0.0
			if st.State == s {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, t, s.String())
		}
		ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.GaugeValue, float64(st.Attempts), t)
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(st.Frames), t)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), t)
		ch <- prometheus.MustNewConstMetric(c.hbFails, prometheus.CounterValue, float64(st.HeartbeatFailures), t)
	}
}

// NewRegistry returns a registry holding the collector plus the Go and
// process collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
