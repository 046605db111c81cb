// Package forecast fits trends to metric series and projects them forward.
package forecast

import (
	"math"
	"time"
)

// RegressionResult contains the output of a linear regression.
type RegressionResult struct {
	Slope     float64 // Change in value per unit of x
	Intercept float64 // Value at x=0
	RSquared  float64 // Coefficient of determination (0-1)
	Predicted float64 // Model value at the last x
	lastX     float64
}

// Fit performs least-squares regression of ys on xs.
// Returns nil if fewer than 2 points are provided or the lengths differ.
func Fit(xs, ys []float64) *RegressionResult {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return nil
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var ssXY, ssXX, ssYY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		ssXY += dx * dy
		ssXX += dx * dx
		ssYY += dy * dy
	}

	if ssXX == 0 {
		return &RegressionResult{Intercept: meanY, Predicted: meanY, lastX: xs[n-1]}
	}

	slope := ssXY / ssXX
	intercept := meanY - slope*meanX

	var rSquared float64
	if ssYY > 0 {
		rSquared = (ssXY * ssXY) / (ssXX * ssYY)
	}

	return &RegressionResult{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  rSquared,
		Predicted: slope*xs[n-1] + intercept,
		lastX:     xs[n-1],
	}
}

// Trend regresses values on their index (0, 1, 2, ...).
func Trend(values []float64) *RegressionResult {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	return Fit(xs, values)
}

// At returns the model value at x.
func (r *RegressionResult) At(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// StepsToLimit returns how many x-units past the last observation the fitted
// line needs to reach limit. ok is false when the line moves away from the
// limit or is flat.
func (r *RegressionResult) StepsToLimit(limit float64) (steps float64, ok bool) {
	switch {
	case r.Slope > 0 && r.Predicted < limit,
		r.Slope < 0 && r.Predicted > limit:
		return (limit - r.Predicted) / r.Slope, true
	case r.Predicted == limit:
		return 0, true
	default:
		return math.Inf(1), false
	}
}

// DaysSince converts timestamps to fractional days relative to the first point.
func DaysSince(timestamps []time.Time) []float64 {
	if len(timestamps) == 0 {
		return nil
	}
	days := make([]float64, len(timestamps))
	base := timestamps[0]
	for i, t := range timestamps {
		days[i] = t.Sub(base).Hours() / 24
	}
	return days
}
