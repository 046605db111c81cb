package source

import (
	"database/sql"

	"github.com/HerbHall/tpminsight/pkg/core"
)

// Migrations returns the source module's database migrations.
func Migrations() []core.Migration {
	return []core.Migration{
		{
			Version:     1,
			Description: "create tenants and metric_points tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS tenants (
						id         TEXT PRIMARY KEY,
						name       TEXT NOT NULL DEFAULT '',
						active     INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS metric_points (
						tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
						metric    TEXT NOT NULL,
						ts        DATETIME NOT NULL,
						value     REAL NOT NULL,
						PRIMARY KEY (tenant_id, metric, ts)
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
