// Package analytics provides public SDK types for the TPM insights and alerting engine.
// This package is Apache 2.0 licensed, part of the public SDK.
package analytics

import "time"

// Priority ranks insights. The ordering high > medium > low is total.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort weight of the priority. Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Cadence is the scheduling frequency class of an insight template.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	return c == CadenceDaily || c == CadenceWeekly
}

// Severity classifies alert rules.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert status values.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
)

// Point is a single time-series observation.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Values extracts the values of an ordered series.
func Values(series []Point) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Value
	}
	return out
}

// ForecastPoint is one projected step of a forecast.
type ForecastPoint struct {
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"` // 0.0-1.0
}

// Snapshot is a point-in-time set of named numeric indicators for a tenant
// (e.g. revenueChange, highRiskCustomers, stockLevel).
type Snapshot map[string]float64

// Get returns the named indicator and whether it is present.
func (s Snapshot) Get(key string) (float64, bool) {
	v, ok := s[key]
	return v, ok
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	cp := make(Snapshot, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// Recommendation is a suggested follow-up attached to an insight.
type Recommendation struct {
	Action    string  `json:"action"`
	Rationale string  `json:"rationale,omitempty"`
	Score     float64 `json:"score"`  // 0.0-1.0, higher is more relevant
	Source    string  `json:"source"` // "heuristic" or provider name
}

// Insight is a ranked, confidence-scored analytical finding about a tenant's metrics.
type Insight struct {
	Type            string           `json:"type"`
	Title           string           `json:"title"`
	Summary         string           `json:"summary"`
	Data            map[string]any   `json:"data,omitempty"`
	Confidence      float64          `json:"confidence"` // 0.0-1.0
	Impact          string           `json:"impact"`     // "low", "medium", "high"
	Urgency         string           `json:"urgency"`    // "low", "medium", "high"
	Template        string           `json:"template"`
	Priority        Priority         `json:"priority"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// ReportMetadata aggregates one pipeline run.
type ReportMetadata struct {
	TotalInsights     int       `json:"total_insights"`
	HighPriority      int       `json:"high_priority"`
	MediumPriority    int       `json:"medium_priority"`
	LowPriority       int       `json:"low_priority"`
	AverageConfidence float64   `json:"average_confidence"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// InsightReport is the result of generating insights for a tenant.
type InsightReport struct {
	TenantID string         `json:"tenant_id"`
	Insights []Insight      `json:"insights"`
	Metadata ReportMetadata `json:"metadata"`
}

// Alert is an append-only record of a triggered alert rule.
type Alert struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	RuleName    string    `json:"rule_name"`
	TenantID    string    `json:"tenant_id"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Data        Snapshot  `json:"data"`
	TriggeredAt time.Time `json:"triggered_at"`
	Actions     []string  `json:"actions"`
	Status      string    `json:"status"`
}

// EngineMetrics summarizes the engine state.
type EngineMetrics struct {
	TotalInsights int        `json:"total_insights"`
	AlertRules    int        `json:"alert_rules"`
	AlertHistory  int        `json:"alert_history"`
	Templates     int        `json:"templates"`
	LastGenerated *time.Time `json:"last_generated,omitempty"`
}
