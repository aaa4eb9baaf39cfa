package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/vshulcz/Clashpulse/internal/domain"
)

// BackendRepo stores daemon profiles. At most one profile is active.
type BackendRepo interface {
	List(ctx context.Context) ([]domain.Backend, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Backend, error)
	Save(ctx context.Context, b domain.Backend) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// Persister snapshots a repository to durable storage and back.
type Persister interface {
	Save(ctx context.Context, backends []domain.Backend) error
	Restore(ctx context.Context, repo BackendRepo) error
}
