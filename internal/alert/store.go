package alert

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// ErrAlertNotFound is returned when an alert ID does not exist for the tenant.
var ErrAlertNotFound = errors.New("alert not found")

// History is the append-only alert log the evaluator writes to.
type History interface {
	AppendAlert(ctx context.Context, alert *analytics.Alert) error
	// LastTriggered returns when rule last fired for the tenant, or nil if never.
	LastTriggered(ctx context.Context, tenantID, ruleID string) (*time.Time, error)
}

// Report is a generated summary of a triggered alert.
type Report struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	TenantID  string    `json:"tenant_id"`
	RuleID    string    `json:"rule_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

var _ History = (*AlertStore)(nil)

// AlertStore provides alert history and report persistence.
type AlertStore struct {
	db *sql.DB
}

// NewAlertStore creates a new AlertStore backed by the given database.
func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

// AppendAlert records a triggered alert.
func (s *AlertStore) AppendAlert(ctx context.Context, a *analytics.Alert) error {
	data, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("marshal alert data: %w", err)
	}
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return fmt.Errorf("marshal alert actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, tenant_id, rule_id, rule_name, severity, message,
			data, actions, status, triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.RuleID, a.RuleName, string(a.Severity), a.Message,
		string(data), string(actions), a.Status, a.TriggeredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

// ListAlerts returns the tenant's alerts, most recent first. A limit of 0 or
// less returns every alert.
func (s *AlertStore) ListAlerts(ctx context.Context, tenantID string, limit int) ([]analytics.Alert, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, rule_id, rule_name, severity, message, data,
			actions, status, triggered_at
		FROM alerts WHERE tenant_id = ?
		ORDER BY triggered_at DESC, id
		LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []analytics.Alert
	for rows.Next() {
		var (
			a             analytics.Alert
			severity      string
			data, actions string
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.RuleID, &a.RuleName, &severity,
			&a.Message, &data, &actions, &a.Status, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.Severity = analytics.Severity(severity)
		if err := json.Unmarshal([]byte(data), &a.Data); err != nil {
			return nil, fmt.Errorf("unmarshal alert data: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal alert actions: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAlerts returns the size of the alert history across all tenants.
func (s *AlertStore) CountAlerts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

// LastTriggered implements History.
func (s *AlertStore) LastTriggered(ctx context.Context, tenantID, ruleID string) (*time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT triggered_at FROM alerts
		WHERE tenant_id = ? AND rule_id = ?
		ORDER BY triggered_at DESC LIMIT 1`,
		tenantID, ruleID,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last triggered %s: %w", ruleID, err)
	}
	return &ts, nil
}

// AcknowledgeAlert moves an active alert to the acknowledged status.
func (s *AlertStore) AcknowledgeAlert(ctx context.Context, tenantID, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = ? WHERE tenant_id = ? AND id = ?`,
		analytics.AlertStatusAcknowledged, tenantID, alertID,
	)
	if err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// InsertReport stores a generated alert report.
func (s *AlertStore) InsertReport(ctx context.Context, r *Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_reports (id, alert_id, tenant_id, rule_id, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AlertID, r.TenantID, r.RuleID, r.Title, r.Body, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// ListReports returns the tenant's reports, newest first.
func (s *AlertStore) ListReports(ctx context.Context, tenantID string) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alert_id, tenant_id, rule_id, title, body, created_at
		FROM alert_reports WHERE tenant_id = ?
		ORDER BY created_at DESC, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.AlertID, &r.TenantID, &r.RuleID, &r.Title, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
