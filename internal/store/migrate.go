package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/tpminsight/pkg/core"
)

// Module names a set of migrations tracked together in the _migrations ledger.
type Module struct {
	Name       string
	Migrations []core.Migration
}

func (m Module) latest() int {
	if n := len(m.Migrations); n > 0 {
		return m.Migrations[n-1].Version
	}
	return 0
}

// MigrateAll migrates each module in turn, stopping at the first failure.
func (s *SQLiteStore) MigrateAll(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := s.Migrate(ctx, m.Name, m.Migrations); err != nil {
			return fmt.Errorf("migrate %s: %w", m.Name, err)
		}
	}
	return nil
}

// Migrate applies the pending migrations of module, each in its own
// transaction. Versions must be strictly ascending. A ledger entry above the
// highest version given means a newer binary has migrated the database, and
// Migrate refuses with ErrNewerSchema rather than run against it.
func (s *SQLiteStore) Migrate(ctx context.Context, module string, migrations []core.Migration) error {
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			return fmt.Errorf("%w: %s version %d follows %d",
				ErrMigrationOrder, module, migrations[i].Version, migrations[i-1].Version)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}
	applied, err := s.appliedVersions(ctx, module)
	if err != nil {
		return err
	}

	known := Module{Name: module, Migrations: migrations}.latest()
	for v := range applied {
		if v > known {
			return fmt.Errorf("%w: %s at version %d, binary knows %d", ErrNewerSchema, module, v, known)
		}
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, module, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", module, m.Version, m.Description, err)
		}
	}
	return nil
}

// SchemaVersions returns the highest applied migration version per module.
func (s *SQLiteStore) SchemaVersions(ctx context.Context) (map[string]int, error) {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT module, MAX(version) FROM _migrations GROUP BY module")
	if err != nil {
		return nil, fmt.Errorf("query schema versions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			module  string
			version int
		)
		if err := rows.Scan(&module, &version); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		out[module] = version
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			module      TEXT     NOT NULL,
			version     INTEGER  NOT NULL,
			description TEXT     NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (module, version)
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) appliedVersions(ctx context.Context, module string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations WHERE module = ?", module)
	if err != nil {
		return nil, fmt.Errorf("list migrations for %s: %w", module, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration for %s: %w", module, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (s *SQLiteStore) applyMigration(ctx context.Context, module string, m core.Migration) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO _migrations (module, version, description) VALUES (?, ?, ?)",
			module, m.Version, m.Description,
		)
		return err
	})
}
