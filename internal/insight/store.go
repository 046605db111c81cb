package insight

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// InsightStore persists the current insight set of each tenant.
type InsightStore struct {
	db *sql.DB
}

// NewInsightStore creates a new InsightStore backed by the given database.
func NewInsightStore(db *sql.DB) *InsightStore {
	return &InsightStore{db: db}
}

// ReplaceInsights swaps the tenant's stored insights for insights in a single
// transaction. Readers see either the previous set or the new one.
func (s *InsightStore) ReplaceInsights(ctx context.Context, tenantID string, insights []analytics.Insight) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace insights: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("clear insights: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO insights (
			tenant_id, position, type, template, title, summary, data,
			confidence, impact, urgency, priority, recommendations, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert insight: %w", err)
	}
	defer stmt.Close()

	for i := range insights {
		ins := &insights[i]
		data, err := json.Marshal(ins.Data)
		if err != nil {
			return fmt.Errorf("marshal insight data for %s: %w", ins.Template, err)
		}
		recs, err := json.Marshal(ins.Recommendations)
		if err != nil {
			return fmt.Errorf("marshal recommendations for %s: %w", ins.Template, err)
		}
		if _, err := stmt.ExecContext(ctx,
			tenantID, i, ins.Type, ins.Template, ins.Title, ins.Summary, string(data),
			ins.Confidence, ins.Impact, ins.Urgency, string(ins.Priority), string(recs), ins.GeneratedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert insight %s: %w", ins.Template, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace insights: %w", err)
	}
	return nil
}

// ListInsights returns the tenant's stored insights in ranked order.
func (s *InsightStore) ListInsights(ctx context.Context, tenantID string) ([]analytics.Insight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, template, title, summary, data, confidence, impact,
			urgency, priority, recommendations, generated_at
		FROM insights WHERE tenant_id = ? ORDER BY position`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var out []analytics.Insight
	for rows.Next() {
		var (
			ins        analytics.Insight
			data, recs string
			priority   string
		)
		if err := rows.Scan(
			&ins.Type, &ins.Template, &ins.Title, &ins.Summary, &data, &ins.Confidence,
			&ins.Impact, &ins.Urgency, &priority, &recs, &ins.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scan insight row: %w", err)
		}
		ins.Priority = analytics.Priority(priority)
		if err := json.Unmarshal([]byte(data), &ins.Data); err != nil {
			return nil, fmt.Errorf("unmarshal insight data: %w", err)
		}
		if err := json.Unmarshal([]byte(recs), &ins.Recommendations); err != nil {
			return nil, fmt.Errorf("unmarshal recommendations: %w", err)
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// CountInsights returns the number of stored insights across all tenants.
func (s *InsightStore) CountInsights(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM insights`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count insights: %w", err)
	}
	return n, nil
}

// LastGenerated returns the most recent generation time across all tenants,
// or nil when nothing is stored.
func (s *InsightStore) LastGenerated(ctx context.Context) (*time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT generated_at FROM insights ORDER BY generated_at DESC LIMIT 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last generated: %w", err)
	}
	return &ts, nil
}
