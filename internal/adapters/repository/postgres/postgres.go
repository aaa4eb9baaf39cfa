// Package postgres implements a Postgres-backed backend profile repository.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/misc"
	"github.com/vshulcz/Clashpulse/internal/ports"
)

// Repo persists profiles in Postgres with retryable operations.
type Repo struct {
	db *sql.DB
}

var _ ports.BackendRepo = (*Repo)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const selectColumns = `id, label, host, port, scheme, secret, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackend(row rowScanner) (domain.Backend, error) {
	var (
		b      domain.Backend
		scheme string
	)
	err := row.Scan(&b.ID, &b.Label, &b.Target.Host, &b.Target.Port, &scheme, &b.Target.Secret,
		&b.Active, &b.CreatedAt, &b.UpdatedAt)
	b.Target.Scheme = domain.Scheme(scheme)
	return b, err
}

// List returns all profiles ordered by creation time.
func (r *Repo) List(ctx context.Context) ([]domain.Backend, error) {
	const q = `SELECT ` + selectColumns + ` FROM backends ORDER BY created_at, id`
	var out []domain.Backend
	op := func() error {
		rows, err := r.db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		items := []domain.Backend{}
		for rows.Next() {
			b, err := scanBackend(rows)
			if err != nil {
				return err
			}
			items = append(items, b)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = items
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return out, nil
}

// Get reads one profile or returns domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id uuid.UUID) (domain.Backend, error) {
	const q = `SELECT ` + selectColumns + ` FROM backends WHERE id=$1`
	var b domain.Backend
	op := func() error {
		var err error
		b, err = scanBackend(r.db.QueryRowContext(ctx, q, id))
		return err
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Backend{}, domain.ErrNotFound
		}
		return domain.Backend{}, err
	}
	return b, nil
}

// Save upserts b. Saving an active profile deactivates the rest in the same transaction.
func (r *Repo) Save(ctx context.Context, b domain.Backend) error {
	const qClear = `UPDATE backends SET active=FALSE, updated_at=now() WHERE active AND id<>$1`
	const qUpsert = `
INSERT INTO backends (id, label, host, port, scheme, secret, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id)
DO UPDATE SET label=EXCLUDED.label, host=EXCLUDED.host, port=EXCLUDED.port, scheme=EXCLUDED.scheme,
	secret=EXCLUDED.secret, active=EXCLUDED.active, updated_at=now();`

	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	attempt := func() error {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if b.Active {
			if _, err := tx.ExecContext(ctx, qClear, b.ID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, qUpsert, b.ID, b.Label, b.Target.Host, b.Target.Port,
			string(b.Target.Scheme), b.Target.Secret, b.Active, created); err != nil {
			return err
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM backends WHERE id=$1`
	var n int64
	op := func() error {
		res, err := r.db.ExecContext(ctx, q, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetActive marks id as the only active profile.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID) error {
	const qClear = `UPDATE backends SET active=FALSE, updated_at=now() WHERE active`
	const qSet = `UPDATE backends SET active=TRUE, updated_at=now() WHERE id=$1`

	attempt := func() error {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		if _, err := tx.ExecContext(ctx, qClear); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, qSet, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

// Ping verifies the database connection using a short-lived context.
func (r *Repo) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return r.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
