// Package source stores tenants and their metric observations in SQLite and
// serves them to the engine as a DataSource and TenantDirectory.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
)

// ErrInvalidPoint is returned for observations without a tenant or metric name.
var ErrInvalidPoint = errors.New("invalid metric point")

// Tenant is a customer whose metrics are analyzed.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricPoint is one observation of a named metric.
type MetricPoint struct {
	Metric    string    `json:"metric"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Compile-time interface guards.
var (
	_ roles.DataSource      = (*Store)(nil)
	_ roles.TenantDirectory = (*Store)(nil)
)

// Store provides tenant and metric persistence.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// UpsertTenant creates the tenant or updates its name and active flag.
func (s *Store) UpsertTenant(ctx context.Context, t Tenant) error {
	if t.ID == "" {
		return errors.New("tenant id is required")
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, active, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		t.ID, t.Name, t.Active, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert tenant %s: %w", t.ID, err)
	}
	return nil
}

// ListTenants returns every tenant ordered by ID.
func (s *Store) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active, created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListActiveTenants implements roles.TenantDirectory.
func (s *Store) ListActiveTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tenants WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertPoints records observations for a tenant in one transaction, creating
// the tenant if it does not exist. A point with the same metric and timestamp
// as an existing one replaces it.
func (s *Store) InsertPoints(ctx context.Context, tenantID string, points []MetricPoint) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidPoint)
	}
	for i := range points {
		if strings.TrimSpace(points[i].Metric) == "" {
			return fmt.Errorf("%w: point %d has no metric", ErrInvalidPoint, i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert points: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tenants (id, name, active, created_at) VALUES (?, ?, 1, ?)`,
		tenantID, tenantID, s.now().UTC(),
	); err != nil {
		return fmt.Errorf("ensure tenant %s: %w", tenantID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO metric_points (tenant_id, metric, ts, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert point: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		ts := p.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		if _, err := stmt.ExecContext(ctx, tenantID, p.Metric, ts.UTC(), p.Value); err != nil {
			return fmt.Errorf("insert point %s: %w", p.Metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert points: %w", err)
	}
	return nil
}

// Snapshot implements roles.DataSource. A tenant with no observations yields
// an empty snapshot.
func (s *Store) Snapshot(ctx context.Context, tenantID string) (analytics.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric, value FROM metric_points
		WHERE tenant_id = ?
		ORDER BY metric, ts DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	snap := analytics.Snapshot{}
	for rows.Next() {
		var (
			metric string
			value  float64
		)
		if err := rows.Scan(&metric, &value); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if _, seen := snap[metric]; !seen {
			snap[metric] = value
		}
	}
	return snap, rows.Err()
}

// Series implements roles.DataSource.
func (s *Store) Series(ctx context.Context, tenantID, metric string, rangeDays int) ([]analytics.Point, error) {
	query := `SELECT ts, value FROM metric_points WHERE tenant_id = ? AND metric = ?`
	args := []any{tenantID, metric}
	if rangeDays > 0 {
		query += ` AND ts >= ?`
		args = append(args, s.now().UTC().AddDate(0, 0, -rangeDays))
	}
	query += ` ORDER BY ts`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load series %s: %w", metric, err)
	}
	defer rows.Close()

	var out []analytics.Point
	for rows.Next() {
		var p analytics.Point
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
