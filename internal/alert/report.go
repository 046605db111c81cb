package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/google/uuid"
)

// ReportWriter persists generated reports.
type ReportWriter interface {
	InsertReport(ctx context.Context, r *Report) error
}

// ReportAction renders an alert into a report and stores it.
type ReportAction struct {
	writer ReportWriter
	now    func() time.Time
}

// NewReportAction creates a report action writing to w.
func NewReportAction(w ReportWriter) *ReportAction {
	return &ReportAction{writer: w, now: time.Now}
}

// Run implements Action.
func (a *ReportAction) Run(ctx context.Context, alert *analytics.Alert) error {
	r := BuildReport(alert, a.now())
	if err := a.writer.InsertReport(ctx, r); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	return nil
}

// BuildReport renders the alert and its snapshot as a plain-text report.
func BuildReport(alert *analytics.Alert, at time.Time) *Report {
	var b strings.Builder
	fmt.Fprintf(&b, "Rule: %s (%s)\n", alert.RuleName, alert.RuleID)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Triggered: %s\n", alert.TriggeredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Message: %s\n", alert.Message)

	if len(alert.Data) > 0 {
		keys := make([]string, 0, len(alert.Data))
		for k := range alert.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Snapshot:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s = %g\n", k, alert.Data[k])
		}
	}

	return &Report{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		TenantID:  alert.TenantID,
		RuleID:    alert.RuleID,
		Title:     fmt.Sprintf("%s report for %s", alert.RuleName, alert.TenantID),
		Body:      b.String(),
		CreatedAt: at.UTC(),
	}
}
