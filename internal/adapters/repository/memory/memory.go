// Package memory implements an in-memory backend profile repository.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// Repo keeps profiles in a map guarded by one RW lock.
type Repo struct {
	items map[uuid.UUID]domain.Backend
	mu    sync.RWMutex
}

var _ ports.BackendRepo = (*Repo)(nil)

func New() *Repo {
	return &Repo{items: make(map[uuid.UUID]domain.Backend)}
}

// List returns profiles ordered by creation time.
func (r *Repo) List(_ context.Context) ([]domain.Backend, error) {
	r.mu.RLock()
	out := make([]domain.Backend, 0, len(r.items))
	for _, b := range r.items {
		out = append(out, b)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns the profile or domain.ErrNotFound.
func (r *Repo) Get(_ context.Context, id uuid.UUID) (domain.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return domain.Backend{}, domain.ErrNotFound
	}
	return b, nil
}

// Save inserts or replaces b. Saving an active profile deactivates the rest.
func (r *Repo) Save(_ context.Context, b domain.Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.Active {
		r.clearActive()
	}
	r.items[b.ID] = b
	return nil
}

func (r *Repo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// SetActive marks id as the only active profile.
func (r *Repo) SetActive(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.clearActive()
	b.Active = true
	r.items[id] = b
	return nil
}

func (r *Repo) clearActive() {
	for id, b := range r.items {
		if b.Active {
			b.Active = false
			r.items[id] = b
		}
	}
}

// Ping reports that the in-memory store is not backed by a real database.
func (*Repo) Ping(context.Context) error {
	return errors.New("db not configured")
}
