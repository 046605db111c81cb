// Package correlation measures how strongly two metric series move together.
package correlation

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when the series are too short or have
// mismatched lengths.
var ErrInsufficientData = errors.New("correlation: need two equal-length series of at least 3 points")

// Strength labels for a correlation coefficient.
const (
	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthWeak     = "weak"
)

// Pearson returns the Pearson correlation coefficient of a and b in [-1, 1].
// A series with zero variance yields 0.
func Pearson(a, b []float64) (float64, error) {
	n := len(a)
	if n < 3 || len(b) != n {
		return 0, ErrInsufficientData
	}

	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, nil
	}

	r := cov / math.Sqrt(varA*varB)
	return math.Max(-1, math.Min(1, r)), nil
}

// Strength buckets |r| into strong (>= 0.7), moderate (>= 0.4) or weak.
func Strength(r float64) string {
	switch abs := math.Abs(r); {
	case abs >= 0.7:
		return StrengthStrong
	case abs >= 0.4:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}
