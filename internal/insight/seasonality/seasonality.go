// Package seasonality detects repeating cycles in metric series with
// autocorrelation.
package seasonality

import "math"

// DefaultLag is one week of daily points.
const DefaultLag = 7

// DefaultThreshold is the minimum strength reported as seasonal.
const DefaultThreshold = 0.3

// Result describes the seasonal signal at one lag.
type Result struct {
	Detected bool    `json:"detected"`
	Strength float64 `json:"strength"`
	Lag      int     `json:"lag"`
}

// Autocorrelation returns the normalized sample autocorrelation of values at
// lag. Returns 0 when the series is not longer than lag or has zero variance.
func Autocorrelation(values []float64, lag int) float64 {
	n := len(values)
	if lag <= 0 || n <= lag {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var denom float64
	for _, v := range values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return 0
	}

	var num float64
	for t := 0; t+lag < n; t++ {
		num += (values[t] - mean) * (values[t+lag] - mean)
	}
	return num / denom
}

// Detect reports seasonality at lag. Strength is the autocorrelation clamped
// to [0, 1] and Detected is Strength > threshold.
func Detect(values []float64, lag int, threshold float64) Result {
	strength := math.Max(0, math.Min(1, Autocorrelation(values, lag)))
	return Result{
		Detected: strength > threshold,
		Strength: strength,
		Lag:      lag,
	}
}
