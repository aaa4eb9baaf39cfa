// Package logbook buffers the daemon's recent log lines.
package logbook

import (
	"context"
	"strings"
	"sync"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// DefaultCapacity is the number of lines kept before the oldest are evicted.
const DefaultCapacity = 1000

// Query narrows Lines. Zero values match everything.
type Query struct {
	Levels []domain.LogLevel
	Search string
	Limit  int
}

type Book struct {
	lines    []domain.LogLine
	mu       sync.RWMutex
	capacity int
	paused   bool
}

func New(capacity int) *Book {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Book{capacity: capacity}
}

// Notify appends LogLine events unless the book is paused.
func (b *Book) Notify(_ context.Context, evt domain.Event) error {
	line, ok := evt.(domain.LogLine)
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		return nil
	}
	b.lines = append(b.lines, line)
	if over := len(b.lines) - b.capacity; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
	}
	return nil
}

// Lines returns matching lines oldest first. With a Limit, the newest Limit matches are kept.
func (b *Book) Lines(q Query) []domain.LogLine {
	levels := make(map[domain.LogLevel]struct{}, len(q.Levels))
	for _, l := range q.Levels {
		levels[l] = struct{}{}
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.LogLine, 0, len(b.lines))
	for _, l := range b.lines {
		if len(levels) > 0 {
			if _, ok := levels[l.Level]; !ok {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Message), search) {
			continue
		}
		out = append(out, l)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

func (b *Book) Pause() { b.setPaused(true) }

func (b *Book) Resume() { b.setPaused(false) }

func (b *Book) setPaused(v bool) {
	b.mu.Lock()
	b.paused = v
	b.mu.Unlock()
}

func (b *Book) Paused() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.paused
}

func (b *Book) Clear() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}
