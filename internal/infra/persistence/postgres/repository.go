// Package postgres stores site graphs in PostgreSQL using the same relational
// layout as the embedded SQLite repository.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/rs/zerolog"

	"calibtrack/internal/entitymodel/sqlbundle"
	"calibtrack/internal/infra/persistence/sqlrows"
	"calibtrack/pkg/domain"
)

var _ domain.SiteRepository = (*Repository)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/calibtrack?sslmode=disable"
	// DefaultLockTimeout bounds how long a save waits on row locks.
	DefaultLockTimeout = 5 * time.Second

	sqlstateLockNotAvailable = "55P03"
	sqlstateDeadlock         = "40P01"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Repository is a SiteRepository backed by PostgreSQL.
type Repository struct {
	db          *sql.DB
	lockTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
	mu          sync.Mutex
}

// Option customises a Repository.
type Option func(*Repository)

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithClock sets the clock used to recalculate schedules on load.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// Open connects using dsn (falls back to defaultDSN) and applies the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Repository, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	r := &Repository{lockTimeout: DefaultLockTimeout, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlrows.ApplySchema(ctx, db, sqlbundle.Postgres()); err != nil {
		_ = db.Close()
		return nil, err
	}
	r.db = db
	return r, nil
}

// SaveSite replaces the stored graph of site in one transaction.
func (r *Repository) SaveSite(ctx context.Context, site domain.Site) error {
	return r.inTx(ctx, "save site", func(ctx context.Context, tx *sql.Tx) error {
		return sqlrows.WriteSite(ctx, tx, sqlrows.Postgres, site)
	})
}

// DeleteSite removes a site and, through cascades, its whole graph.
func (r *Repository) DeleteSite(ctx context.Context, id string) error {
	return r.inTx(ctx, "delete site", func(ctx context.Context, tx *sql.Tx) error {
		return sqlrows.DeleteSite(ctx, tx, sqlrows.Postgres, id)
	})
}

// LoadAll reads every stored site and normalises it.
func (r *Repository) LoadAll(ctx context.Context) ([]domain.Site, error) {
	sites, err := sqlrows.LoadSites(ctx, r.db, sqlrows.Postgres)
	if err != nil {
		return nil, classify("load sites", err)
	}
	now := r.now()
	for i := range sites {
		sites[i] = domain.NormalizeSite(sites[i], now)
	}
	return sites, nil
}

// Close releases the connection pool.
func (r *Repository) Close() error { return r.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) inTx(ctx context.Context, op string, fn func(context.Context, *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	txCtx := context.WithoutCancel(ctx)
	tx, err := r.db.BeginTx(txCtx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Warn().Err(rbErr).Str("op", op).Msg("postgres rollback failed")
			}
		}
	}()
	// SET LOCAL does not take bind parameters.
	if _, err := tx.ExecContext(txCtx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return classify(op, fmt.Errorf("set lock_timeout: %w", err))
	}
	if err := fn(txCtx, tx); err != nil {
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// classify maps lock_not_available and deadlock_detected to ErrLocked and
// every other failure to ErrTransactionFailed.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateLockNotAvailable, sqlstateDeadlock:
			return domain.ErrLocked{Op: op, Err: err}
		}
	}
	return domain.ErrTransactionFailed{Op: op, Err: err}
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
