// Package roles defines the typed contracts of the collaborators the insights
// engine consumes. Implementations live in internal packages or outside this
// repository; the engine depends only on these interfaces.
//
// This package is Apache 2.0 licensed, part of the public SDK.
package roles

import (
	"context"

	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// Prediction kinds understood by PredictionProvider implementations.
const (
	PredictDemand = "demand"
	PredictPrice  = "price"
	PredictChurn  = "churn"
)

// PredictionParams scopes a forecast request.
type PredictionParams struct {
	TenantID    string
	HorizonDays int
	HistoryDays int
}

// PredictionProvider supplies demand, price and churn forecasts.
type PredictionProvider interface {
	// Forecast returns one predicted value per horizon step.
	Forecast(ctx context.Context, kind string, params PredictionParams) ([]float64, error)
}

// RecommendationContext describes the insight a recommendation is requested for.
type RecommendationContext struct {
	TenantID    string
	InsightType string
	Title       string
	Summary     string
	Data        map[string]any
	Limit       int
}

// RecommendationProvider returns a ranked list of recommendations.
type RecommendationProvider interface {
	Recommend(ctx context.Context, rc RecommendationContext) ([]analytics.Recommendation, error)
}

// TenantDirectory enumerates the tenants the scheduler processes.
type TenantDirectory interface {
	ListActiveTenants(ctx context.Context) ([]string, error)
}

// DataSource supplies metric snapshots and time series for a tenant.
type DataSource interface {
	// Snapshot returns the latest value of every metric recorded for the tenant.
	Snapshot(ctx context.Context, tenantID string) (analytics.Snapshot, error)

	// Series returns the ordered observations of a metric within the last rangeDays days.
	Series(ctx context.Context, tenantID, metric string, rangeDays int) ([]analytics.Point, error)
}

// ActionDispatcher performs the side effect named by an alert rule action.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action string, alert *analytics.Alert) error
}
