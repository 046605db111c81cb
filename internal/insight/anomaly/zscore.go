// Package anomaly flags unusual points in metric series using z-scores and
// detects sustained level shifts using CUSUM.
package anomaly

import "math"

// Severity levels for detected anomalies.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ZScoreResult contains the result of a Z-score check.
type ZScoreResult struct {
	IsAnomaly bool
	ZScore    float64
	Severity  string
}

// ZScoreCheck evaluates whether a value is anomalous given a mean and standard deviation.
// A value is anomalous when |z| is strictly greater than threshold.
// Severity mapping:
//   - warning: threshold < |z| < threshold+1
//   - critical: |z| >= threshold+1
func ZScoreCheck(value, mean, stdDev, threshold float64) ZScoreResult {
	if stdDev <= 0 {
		return ZScoreResult{}
	}
	z := (value - mean) / stdDev
	absZ := math.Abs(z)

	if absZ <= threshold {
		return ZScoreResult{ZScore: z}
	}

	severity := SeverityWarning
	if absZ >= threshold+1 {
		severity = SeverityCritical
	}

	return ZScoreResult{
		IsAnomaly: true,
		ZScore:    z,
		Severity:  severity,
	}
}

// Anomaly is a single flagged point of a series.
type Anomaly struct {
	Index    int     `json:"index"`
	Value    float64 `json:"value"`
	ZScore   float64 `json:"z_score"`
	Severity string  `json:"severity"`
}

// MeanStdDev returns the mean and population standard deviation of values.
func MeanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}

// Detect returns the points whose absolute deviation from the series mean
// exceeds k standard deviations, in index order. A constant series has no anomalies.
func Detect(values []float64, k float64) []Anomaly {
	mean, sd := MeanStdDev(values)
	if sd == 0 {
		return nil
	}
	var out []Anomaly
	for i, v := range values {
		r := ZScoreCheck(v, mean, sd, k)
		if !r.IsAnomaly {
			continue
		}
		out = append(out, Anomaly{Index: i, Value: v, ZScore: r.ZScore, Severity: r.Severity})
	}
	return out
}
