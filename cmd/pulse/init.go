package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vshulcz/Clashpulse/internal/adapters/persistence/file"
	memrepo "github.com/vshulcz/Clashpulse/internal/adapters/repository/memory"
	pgrepo "github.com/vshulcz/Clashpulse/internal/adapters/repository/postgres"
	"github.com/vshulcz/Clashpulse/internal/config"
	"github.com/vshulcz/Clashpulse/internal/misc"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// buildRepo prefers Postgres when a DSN is set and falls back to memory
// restored from the profiles file. The returned closer is never nil.
func buildRepo(ctx context.Context, cfg config.PulseConfig, logger *zap.Logger) (ports.BackendRepo, ports.Persister, func()) {
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err == nil {
			op := func() error {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
				return pgrepo.Migrate(ctx, db)
			}
			if err = misc.Retry(ctx, misc.DefaultBackoff, pgrepo.IsRetryable, op); err == nil {
				logger.Info("db connected & migrated")
				return pgrepo.New(db), nil, func() { _ = db.Close() }
			}
			_ = db.Close()
		}
		logger.Warn("postgres init failed, falling back to memory", zap.Error(err))
	}

	repo := memrepo.New()
	p := file.New(cfg.ProfilesFile)
	if err := p.Restore(ctx, repo); err != nil {
		logger.Warn("restore failed", zap.String("file", cfg.ProfilesFile), zap.Error(err))
	} else {
		logger.Info("profiles restored", zap.String("file", cfg.ProfilesFile))
	}
	return repo, p, func() {}
}

func describeRepo(r ports.BackendRepo) string {
	switch r.(type) {
	case *pgrepo.Repo:
		return "postgres"
	case *memrepo.Repo:
		return "memory"
	default:
		return fmt.Sprintf("%T", r)
	}
}
