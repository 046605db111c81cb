package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/HerbHall/tpminsight/pkg/core"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

var (
	// ErrNewerSchema is returned when the database was written by a newer
	// tpminsight than the running binary, either by app version or by a
	// module migration the binary does not know.
	ErrNewerSchema = errors.New("database was created by a newer version of tpminsight")

	// ErrSchemaBehind is returned by Ready when a module has pending migrations.
	ErrSchemaBehind = errors.New("database schema is behind")

	// ErrMigrationOrder is returned when a module's migrations are not listed
	// in strictly ascending version order.
	ErrMigrationOrder = errors.New("migrations out of order")
)

var _ core.Store = (*SQLiteStore)(nil)

// SQLiteStore is the engine's SQLite database. It owns the migration ledger
// shared by the source, insight and alert modules.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // serializes migrations
}

// New opens the database at path with default settings.
func New(path string) (*SQLiteStore, error) {
	return Open(context.Background(), Config{Path: path})
}

// Open opens (or creates) the database described by cfg, creating its parent
// directory when needed, and applies the connection pragmas.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	cfg.normalize()
	if !inMemory(cfg.Path) {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.Path, err)
	}

	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", cfg.Path, err)
	}

	// modernc.org/sqlite takes pragmas as statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA cache_size=-%d", cfg.CacheSizeKiB),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: cfg.Path}, nil
}

// DB returns the underlying *sql.DB for direct queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database location the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// Ready reports whether the database answers and every module is migrated to
// the latest version it ships.
func (s *SQLiteStore) Ready(ctx context.Context, modules ...Module) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	applied, err := s.SchemaVersions(ctx)
	if err != nil {
		return err
	}
	for _, m := range modules {
		if want := m.latest(); applied[m.Name] < want {
			return fmt.Errorf("%w: %s at version %d, want %d", ErrSchemaBehind, m.Name, applied[m.Name], want)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
