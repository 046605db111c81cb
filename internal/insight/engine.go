package insight

import (
	"context"
	"fmt"

	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// RuleCounter reports how many alert rules are registered.
type RuleCounter interface {
	Len() int
}

// AlertCounter reports how many alerts have been recorded.
type AlertCounter interface {
	CountAlerts(ctx context.Context) (int, error)
}

// Engine exposes aggregate state of the insight and alerting subsystems.
type Engine struct {
	pipeline *Pipeline
	insights *InsightStore
	rules    RuleCounter
	alerts   AlertCounter
}

// NewEngine creates an Engine. insights, rules and alerts may be nil.
func NewEngine(pipeline *Pipeline, insights *InsightStore, rules RuleCounter, alerts AlertCounter) *Engine {
	return &Engine{pipeline: pipeline, insights: insights, rules: rules, alerts: alerts}
}

// Pipeline returns the engine's insight pipeline.
func (e *Engine) Pipeline() *Pipeline {
	return e.pipeline
}

// GetInsightMetrics returns stored insight and alert counts, registry sizes,
// and the time of the last generation run.
func (e *Engine) GetInsightMetrics(ctx context.Context) (analytics.EngineMetrics, error) {
	var m analytics.EngineMetrics
	if e.pipeline != nil {
		m.Templates = e.pipeline.Templates().Len()
		m.LastGenerated = e.pipeline.LastGenerated()
	}
	if e.rules != nil {
		m.AlertRules = e.rules.Len()
	}
	if e.insights != nil {
		n, err := e.insights.CountInsights(ctx)
		if err != nil {
			return m, err
		}
		m.TotalInsights = n
		if m.LastGenerated == nil {
			if m.LastGenerated, err = e.insights.LastGenerated(ctx); err != nil {
				return m, err
			}
		}
	}
	if e.alerts != nil {
		n, err := e.alerts.CountAlerts(ctx)
		if err != nil {
			return m, fmt.Errorf("count alert history: %w", err)
		}
		m.AlertHistory = n
	}
	return m, nil
}
