package forecast

import (
	"math"
	"time"

	"github.com/HerbHall/tpminsight/internal/insight/baseline"
	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// MinConfidence is the floor applied to projected point confidence.
const MinConfidence = 0.5

// Project runs exponential smoothing over values and holds the final smoothed
// level flat for horizonDays days after last. Step i (1-based) carries
// confidence max(0.5, 1-0.1*i). Returns nil for an empty series or a
// non-positive horizon.
func Project(values []float64, last time.Time, horizonDays int, alpha float64) []analytics.ForecastPoint {
	level, ok := baseline.Smooth(values, alpha)
	if !ok || horizonDays <= 0 {
		return nil
	}
	out := make([]analytics.ForecastPoint, horizonDays)
	for i := range out {
		step := i + 1
		out[i] = analytics.ForecastPoint{
			Date:       last.AddDate(0, 0, step),
			Value:      level,
			Confidence: StepConfidence(step),
		}
	}
	return out
}

// StepConfidence returns the confidence for a point step days ahead.
func StepConfidence(step int) float64 {
	return math.Max(MinConfidence, 1-0.1*float64(step))
}
