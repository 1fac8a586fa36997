// Package sqlite stores site graphs in an embedded SQLite database running in
// WAL mode with a bounded busy timeout.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	sqlite3 "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"calibtrack/internal/entitymodel/sqlbundle"
	"calibtrack/internal/infra/persistence/sqlrows"
	"calibtrack/pkg/domain"
)

var _ domain.SiteRepository = (*Repository)(nil)

const (
	// DefaultPath is used when no database file is configured.
	DefaultPath = "calibtrack.db"
	// DefaultBusyTimeout bounds how long a writer waits for the database lock.
	DefaultBusyTimeout = 5 * time.Second
)

// Repository is a SiteRepository backed by a SQLite file.
type Repository struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
	mu          sync.Mutex
}

// Option customises a Repository.
type Option func(*Repository)

// WithBusyTimeout overrides DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.busyTimeout = d
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

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string, opts ...Option) (*Repository, error) {
	if path == "" {
		path = DefaultPath
	}
	r := &Repository{
		path:        path,
		busyTimeout: DefaultBusyTimeout,
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", r.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := sqlrows.ApplySchema(ctx, db, sqlbundle.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	r.db = db
	r.log.Debug().Str("path", path).Dur("busy_timeout", r.busyTimeout).Msg("sqlite repository opened")
	return r, nil
}

func (r *Repository) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", r.busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return r.path + "?" + q.Encode()
}

// SaveSite replaces the stored graph of site in one transaction.
func (r *Repository) SaveSite(ctx context.Context, site domain.Site) error {
	return r.inTx(ctx, "save site", func(ctx context.Context, tx *sql.Tx) error {
		return sqlrows.WriteSite(ctx, tx, sqlrows.SQLite, site)
	})
}

// DeleteSite removes a site and, through cascades, its whole graph.
func (r *Repository) DeleteSite(ctx context.Context, id string) error {
	return r.inTx(ctx, "delete site", func(ctx context.Context, tx *sql.Tx) error {
		return sqlrows.DeleteSite(ctx, tx, sqlrows.SQLite, id)
	})
}

// LoadAll reads every stored site and normalises it.
func (r *Repository) LoadAll(ctx context.Context) ([]domain.Site, error) {
	sites, err := sqlrows.LoadSites(ctx, r.db, sqlrows.SQLite)
	if err != nil {
		return nil, classify("load sites", err)
	}
	now := r.now()
	for i := range sites {
		sites[i] = domain.NormalizeSite(sites[i], now)
	}
	return sites, nil
}

// Close releases the database handle.
func (r *Repository) Close() error { return r.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (r *Repository) DB() *sql.DB { return r.db }

// Path returns the configured database path.
func (r *Repository) Path() string { return r.path }

// inTx runs fn in an immediate transaction. Once begun the transaction is
// detached from ctx cancellation so it either commits or rolls back whole.
func (r *Repository) inTx(ctx context.Context, op string, fn func(context.Context, *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	txCtx := context.WithoutCancel(ctx)
	tx, err := r.db.BeginTx(txCtx, nil)
	if err != nil {
		return classify(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Warn().Err(rbErr).Str("op", op).Msg("sqlite rollback failed")
			}
		}
	}()
	if err := fn(txCtx, tx); err != nil {
		return classify(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classify(op, err)
	}
	committed = true
	return nil
}

// classify maps SQLITE_BUSY and SQLITE_LOCKED to ErrLocked and every other
// failure to ErrTransactionFailed.
func classify(op string, err error) error {
	var se *sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return domain.ErrLocked{Op: op, Err: err}
		}
	}
	return domain.ErrTransactionFailed{Op: op, Err: err}
}
