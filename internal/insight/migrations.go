package insight

import (
	"database/sql"

	"github.com/HerbHall/tpminsight/pkg/core"
)

// Migrations returns the insight module's database migrations.
func Migrations() []core.Migration {
	return []core.Migration{
		{
			Version:     1,
			Description: "create insights table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS insights (
						tenant_id       TEXT NOT NULL,
						position        INTEGER NOT NULL,
						type            TEXT NOT NULL,
						template        TEXT NOT NULL,
						title           TEXT NOT NULL,
						summary         TEXT NOT NULL DEFAULT '',
						data            TEXT NOT NULL DEFAULT '{}',
						confidence      REAL NOT NULL DEFAULT 0,
						impact          TEXT NOT NULL DEFAULT 'low',
						urgency         TEXT NOT NULL DEFAULT 'low',
						priority        TEXT NOT NULL,
						recommendations TEXT NOT NULL DEFAULT '[]',
						generated_at    DATETIME NOT NULL,
						PRIMARY KEY (tenant_id, position)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_insights_generated ON insights(generated_at)`,
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
