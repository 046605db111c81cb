package alert

import (
	"database/sql"

	"github.com/HerbHall/tpminsight/pkg/core"
)

// Migrations returns the alert module's database migrations.
func Migrations() []core.Migration {
	return []core.Migration{
		{
			Version:     1,
			Description: "create alerts table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS alerts (
						id           TEXT PRIMARY KEY,
						tenant_id    TEXT NOT NULL,
						rule_id      TEXT NOT NULL,
						rule_name    TEXT NOT NULL,
						severity     TEXT NOT NULL,
						message      TEXT NOT NULL DEFAULT '',
						data         TEXT NOT NULL DEFAULT '{}',
						actions      TEXT NOT NULL DEFAULT '[]',
						status       TEXT NOT NULL DEFAULT 'active',
						triggered_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alerts_tenant_rule ON alerts(tenant_id, rule_id, triggered_at)`,
					`CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     2,
			Description: "create alert reports table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS alert_reports (
					id         TEXT PRIMARY KEY,
					alert_id   TEXT NOT NULL,
					tenant_id  TEXT NOT NULL,
					rule_id    TEXT NOT NULL,
					title      TEXT NOT NULL,
					body       TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`)
				return err
			},
		},
	}
}
