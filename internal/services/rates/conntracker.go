package rates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// SortOrder selects how ConnTracker.List orders connections.
type SortOrder string

const (
	SortSpeed   SortOrder = "speed"
	SortTraffic SortOrder = "traffic"
	SortTime    SortOrder = "time"
	SortHost    SortOrder = "host"
)

// ParseSortOrder defaults to SortTime for an empty string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return SortTime, nil
	case SortSpeed, SortTraffic, SortTime, SortHost:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// ConnRate is a connection with its speed since the previous snapshot.
type ConnRate struct {
	domain.Connection
	UploadSpeed   float64 `json:"uploadSpeed"`
	DownloadSpeed float64 `json:"downloadSpeed"`
}

// ConnTracker computes per-connection speeds from consecutive snapshots.
type ConnTracker struct {
	at      time.Time
	prev    map[string]domain.Connection
	current []ConnRate
	mu      sync.RWMutex
}

func NewConnTracker() *ConnTracker {
	return &ConnTracker{prev: make(map[string]domain.Connection)}
}

// Update replaces the tracked list with snap. Connections seen for the first
// time have zero speed.
func (t *ConnTracker) Update(snap domain.ConnectionsSnapshot) []ConnRate {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := snap.At.Sub(t.at).Seconds()
	next := make(map[string]domain.Connection, len(snap.Connections))
	cur := make([]ConnRate, 0, len(snap.Connections))
	for _, c := range snap.Connections {
		cr := ConnRate{Connection: c}
		if p, ok := t.prev[c.ID]; ok && elapsed > 0 {
			cr.UploadSpeed = perSecond(c.Upload-p.Upload, elapsed)
			cr.DownloadSpeed = perSecond(c.Download-p.Download, elapsed)
		}
		next[c.ID] = c
		cur = append(cur, cr)
	}
	t.prev = next
	t.at = snap.At
	t.current = cur
	return append([]ConnRate(nil), cur...)
}

// List returns a sorted copy of the latest connections.
func (t *ConnTracker) List(order SortOrder) []ConnRate {
	t.mu.RLock()
	out := append([]ConnRate(nil), t.current...)
	t.mu.RUnlock()

	var less func(a, b ConnRate) bool
	switch order {
	case SortSpeed:
		less = func(a, b ConnRate) bool { return a.UploadSpeed+a.DownloadSpeed > b.UploadSpeed+b.DownloadSpeed }
	case SortTraffic:
		less = func(a, b ConnRate) bool { return a.Total() > b.Total() }
	case SortHost:
		less = func(a, b ConnRate) bool { return a.Metadata.DisplayHost() < b.Metadata.DisplayHost() }
	default:
		less = func(a, b ConnRate) bool { return a.Start.After(b.Start) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (t *ConnTracker) Reset() {
	t.mu.Lock()
	t.prev = make(map[string]domain.Connection)
	t.current = nil
	t.at = time.Time{}
	t.mu.Unlock()
}

// Notify consumes ConnectionsSnapshot events.
func (t *ConnTracker) Notify(_ context.Context, evt domain.Event) error {
	if snap, ok := evt.(domain.ConnectionsSnapshot); ok {
		t.Update(snap)
	}
	return nil
}
