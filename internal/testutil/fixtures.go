// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// NewAlert returns an active Alert with sensible defaults, suitable for test fixtures.
// Override individual fields with options.
func NewAlert(opts ...func(*analytics.Alert)) analytics.Alert {
	a := analytics.Alert{
		ID:          uuid.New().String(),
		RuleID:      "low_inventory",
		RuleName:    "Low Inventory",
		TenantID:    "acme",
		Severity:    analytics.SeverityMedium,
		Message:     "Low Inventory: stockLevel is 42 (threshold stockLevel < 100)",
		Data:        analytics.Snapshot{"stockLevel": 42},
		TriggeredAt: time.Now().UTC(),
		Actions:     []string{"notify_inventory"},
		Status:      analytics.AlertStatusActive,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithTenant sets the alert tenant.
func WithTenant(id string) func(*analytics.Alert) {
	return func(a *analytics.Alert) { a.TenantID = id }
}

// WithRule sets the alert rule ID and name.
func WithRule(id, name string) func(*analytics.Alert) {
	return func(a *analytics.Alert) { a.RuleID, a.RuleName = id, name }
}

// WithSeverity sets the alert severity.
func WithSeverity(s analytics.Severity) func(*analytics.Alert) {
	return func(a *analytics.Alert) { a.Severity = s }
}

// WithTriggeredAt sets the alert trigger time.
func WithTriggeredAt(t time.Time) func(*analytics.Alert) {
	return func(a *analytics.Alert) { a.TriggeredAt = t }
}

// NewInsight returns a medium-priority Insight with sensible defaults.
func NewInsight(opts ...func(*analytics.Insight)) analytics.Insight {
	ins := analytics.Insight{
		Type:        "revenue_trend",
		Title:       "Revenue is trending up",
		Summary:     "Revenue grew 12% over the last 30 days.",
		Data:        map[string]any{"slope": 4.2},
		Confidence:  0.8,
		Impact:      "medium",
		Urgency:     "low",
		Template:    "revenue_trend",
		Priority:    analytics.PriorityMedium,
		GeneratedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&ins)
	}
	return ins
}

// WithPriority sets the insight priority.
func WithPriority(p analytics.Priority) func(*analytics.Insight) {
	return func(ins *analytics.Insight) { ins.Priority = p }
}

// WithConfidence sets the insight confidence.
func WithConfidence(c float64) func(*analytics.Insight) {
	return func(ins *analytics.Insight) { ins.Confidence = c }
}

// DailySeries builds one point per day starting at start.
func DailySeries(start time.Time, values ...float64) []analytics.Point {
	out := make([]analytics.Point, len(values))
	for i, v := range values {
		out[i] = analytics.Point{Timestamp: start.AddDate(0, 0, i), Value: v}
	}
	return out
}

// Linear returns n values starting at start and growing by step.
func Linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// WeeklyPattern repeats a retail week (weekend peak) for the given number of weeks.
func WeeklyPattern(weeks int) []float64 {
	pattern := []float64{120, 80, 85, 90, 95, 150, 180}
	out := make([]float64, 0, weeks*len(pattern))
	for range weeks {
		out = append(out, pattern...)
	}
	return out
}
