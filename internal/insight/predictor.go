package insight

import (
	"context"
	"errors"
	"fmt"

	"github.com/HerbHall/tpminsight/internal/insight/baseline"
	"github.com/HerbHall/tpminsight/internal/insight/forecast"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
)

// ErrUnknownPrediction is returned for a prediction kind with no backing metric.
var ErrUnknownPrediction = errors.New("unknown prediction kind")

// Compile-time interface guard.
var _ roles.PredictionProvider = (*SeasonalPredictor)(nil)

// SeasonalPredictor forecasts tenant metrics locally with Holt-Winters
// smoothing over a DataSource. Series shorter than two seasons fall back to
// a flat exponential-smoothing projection.
type SeasonalPredictor struct {
	data      roles.DataSource
	alpha     float64
	beta      float64
	gamma     float64
	seasonLen int
	smoothing float64
}

// NewSeasonalPredictor creates a predictor reading history from data.
func NewSeasonalPredictor(data roles.DataSource, cfg Config) *SeasonalPredictor {
	cfg.normalize()
	return &SeasonalPredictor{
		data:      data,
		alpha:     cfg.HWAlpha,
		beta:      cfg.HWBeta,
		gamma:     cfg.HWGamma,
		seasonLen: cfg.SeasonalityLag,
		smoothing: cfg.SmoothingAlpha,
	}
}

var predictionMetrics = map[string]string{
	roles.PredictDemand: MetricUnitsSold,
	roles.PredictPrice:  MetricAveragePrice,
	roles.PredictChurn:  MetricChurnRate,
}

// Forecast implements roles.PredictionProvider. It returns nil when the
// tenant has no history for the metric.
func (p *SeasonalPredictor) Forecast(ctx context.Context, kind string, params roles.PredictionParams) ([]float64, error) {
	metric, ok := predictionMetrics[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrediction, kind)
	}
	if params.HorizonDays <= 0 {
		return nil, nil
	}
	history := params.HistoryDays
	if history <= 0 {
		history = DefaultConfig().TimeRangeDays
	}

	series, err := p.data.Series(ctx, params.TenantID, metric, history)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", metric, err)
	}
	values := analytics.Values(series)
	if len(values) == 0 {
		return nil, nil
	}

	if len(values) >= 2*p.seasonLen {
		hw := baseline.NewHoltWinters(p.alpha, p.beta, p.gamma, p.seasonLen)
		for _, v := range values {
			hw.Update(v)
		}
		return hw.Forecast(params.HorizonDays), nil
	}

	points := forecast.Project(values, series[len(series)-1].Timestamp, params.HorizonDays, p.smoothing)
	out := make([]float64, len(points))
	for i, pt := range points {
		out[i] = pt.Value
	}
	return out, nil
}
