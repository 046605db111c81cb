package insight

import (
	"math"

	"github.com/HerbHall/tpminsight/internal/insight/anomaly"
	"github.com/HerbHall/tpminsight/internal/insight/correlation"
	"github.com/HerbHall/tpminsight/internal/insight/forecast"
	"github.com/HerbHall/tpminsight/internal/insight/seasonality"
	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// Trend directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"
)

// AnomalyPoint is an observation flagged by Analyzer.Anomalies.
type AnomalyPoint struct {
	analytics.Point
	ZScore   float64 `json:"z_score"`
	Severity string  `json:"severity"`
}

// Analyzer bundles the time-series primitives used by insight templates.
// It holds only parameters, so one value is safe for concurrent use.
// Degenerate input (empty, too short, constant) yields neutral results.
type Analyzer struct {
	alpha          float64
	lag            int
	threshold      float64
	k              float64
	stableRatio    float64
	cusumDrift     float64
	cusumThreshold float64
}

// NewAnalyzer creates an Analyzer from cfg.
func NewAnalyzer(cfg Config) *Analyzer {
	cfg.normalize()
	return &Analyzer{
		alpha:          cfg.SmoothingAlpha,
		lag:            cfg.SeasonalityLag,
		threshold:      cfg.SeasonalityThreshold,
		k:              cfg.AnomalyK,
		stableRatio:    cfg.StableSlopeRatio,
		cusumDrift:     cfg.CUSUMDrift,
		cusumThreshold: cfg.CUSUMThreshold,
	}
}

// Trend returns the least-squares slope of values against their index.
func (a *Analyzer) Trend(values []float64) float64 {
	r := forecast.Trend(values)
	if r == nil {
		return 0
	}
	return r.Slope
}

// Direction maps a slope to increasing, decreasing or stable. A slope whose
// magnitude relative to the series mean is below the configured ratio is stable.
func (a *Analyzer) Direction(slope float64, values []float64) string {
	mean, _ := anomaly.MeanStdDev(values)
	scale := math.Abs(mean)
	if scale == 0 {
		scale = 1
	}
	switch {
	case math.Abs(slope)/scale <= a.stableRatio:
		return DirectionStable
	case slope > 0:
		return DirectionIncreasing
	default:
		return DirectionDecreasing
	}
}

// Seasonality checks values for a cycle at the configured lag.
func (a *Analyzer) Seasonality(values []float64) seasonality.Result {
	return seasonality.Detect(values, a.lag, a.threshold)
}

// Anomalies returns the points of series deviating from the mean by more
// than k standard deviations.
func (a *Analyzer) Anomalies(series []analytics.Point) []AnomalyPoint {
	found := anomaly.Detect(analytics.Values(series), a.k)
	out := make([]AnomalyPoint, 0, len(found))
	for _, f := range found {
		out = append(out, AnomalyPoint{Point: series[f.Index], ZScore: f.ZScore, Severity: f.Severity})
	}
	return out
}

// Forecast projects series horizonDays past its last observation.
func (a *Analyzer) Forecast(series []analytics.Point, horizonDays int) []analytics.ForecastPoint {
	if len(series) == 0 {
		return nil
	}
	return forecast.Project(analytics.Values(series), series[len(series)-1].Timestamp, horizonDays, a.alpha)
}

// ChangePoint reports the first sustained level shift after the opening third
// of the series, or nil.
func (a *Analyzer) ChangePoint(values []float64) *anomaly.Shift {
	return anomaly.DetectShift(values, a.cusumDrift, a.cusumThreshold)
}

// Correlation returns the Pearson coefficient of two aligned series, or 0
// when they are too short.
func (a *Analyzer) Correlation(x, y []float64) float64 {
	r, err := correlation.Pearson(x, y)
	if err != nil {
		return 0
	}
	return r
}

// StepsToLimit returns how many steps the fitted trend needs to reach limit.
func (a *Analyzer) StepsToLimit(values []float64, limit float64) (float64, bool) {
	r := forecast.Trend(values)
	if r == nil {
		return 0, false
	}
	return r.StepsToLimit(limit)
}

// TrendConfidence scores a fitted trend. It rises with the relative size of
// the change over the window and falls with the coefficient of variation.
func (a *Analyzer) TrendConfidence(slope float64, values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, sd := anomaly.MeanStdDev(values)
	if mean == 0 {
		return clamp01(0.5 / (1 + sd))
	}
	magnitude := math.Min(1, math.Abs(slope)*float64(len(values))/math.Abs(mean))
	cv := sd / math.Abs(mean)
	return clamp01((0.5 + 0.5*magnitude) / (1 + cv))
}

// PredictionConfidence scores a predicted series by its stability: the lower
// its coefficient of variation, the higher the score.
func (a *Analyzer) PredictionConfidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, sd := anomaly.MeanStdDev(values)
	if mean == 0 {
		if sd == 0 {
			return 1
		}
		return clamp01(1 / (1 + sd))
	}
	return clamp01(1 / (1 + sd/math.Abs(mean)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func mean(values []float64) float64 {
	m, _ := anomaly.MeanStdDev(values)
	return m
}
