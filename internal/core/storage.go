package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"calibtrack/internal/infra/persistence/memory"
	"calibtrack/internal/infra/persistence/postgres"
	"calibtrack/internal/infra/persistence/sqlite"
	"calibtrack/pkg/domain"
)

// StorageDriver identifies a concrete repository implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / dry runs)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the repository.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// LockWait bounds how long a save waits for a lock held elsewhere: the
	// sqlite busy timeout or the postgres lock_timeout.
	LockWait time.Duration
}

// OpenRepository opens the repository named by cfg.Driver; sqlite is the
// default.
func OpenRepository(ctx context.Context, cfg StorageConfig, logger zerolog.Logger) (domain.SiteRepository, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case "", StorageSQLite:
		opts := []sqlite.Option{sqlite.WithLogger(logger)}
		if cfg.LockWait > 0 {
			opts = append(opts, sqlite.WithBusyTimeout(cfg.LockWait))
		}
		repo, err := sqlite.Open(ctx, cfg.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case StoragePostgres:
		opts := []postgres.Option{postgres.WithLogger(logger)}
		if cfg.LockWait > 0 {
			opts = append(opts, postgres.WithLockTimeout(cfg.LockWait))
		}
		repo, err := postgres.Open(ctx, cfg.PostgresDSN, opts...)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
