package forecast

import (
	"math"
	"testing"
	"time"
)

func TestFit_PerfectLine(t *testing.T) {
	t.Parallel()

	// y = 2x + 1
	result := Fit([]float64{0, 1, 2, 3, 4}, []float64{1, 3, 5, 7, 9})
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if math.Abs(result.Slope-2.0) > 0.0001 {
		t.Errorf("Slope = %v, want 2.0", result.Slope)
	}
	if math.Abs(result.Intercept-1.0) > 0.0001 {
		t.Errorf("Intercept = %v, want 1.0", result.Intercept)
	}
	if math.Abs(result.RSquared-1.0) > 0.0001 {
		t.Errorf("RSquared = %v, want 1.0", result.RSquared)
	}
	if math.Abs(result.Predicted-9.0) > 0.0001 {
		t.Errorf("Predicted = %v, want 9.0", result.Predicted)
	}
	if got := result.At(10); math.Abs(got-21) > 0.0001 {
		t.Errorf("At(10) = %v, want 21", got)
	}
}

func TestTrend_Direction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		check  func(slope float64) bool
	}{
		{name: "increasing", values: []float64{100, 110, 120, 130, 140, 150}, check: func(s float64) bool { return s > 0 }},
		{name: "decreasing", values: []float64{150, 140, 130, 120, 110, 100}, check: func(s float64) bool { return s < 0 }},
		{name: "flat", values: []float64{50, 50, 50, 50, 50}, check: func(s float64) bool { return math.Abs(s) < 1e-9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := Trend(tt.values)
			if result == nil {
				t.Fatal("Trend() = nil")
			}
			if !tt.check(result.Slope) {
				t.Errorf("Slope = %v has wrong sign", result.Slope)
			}
		})
	}
}

func TestFit_TooFewPoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		xs, ys []float64
	}{
		{name: "empty", xs: nil, ys: nil},
		{name: "single point", xs: []float64{0}, ys: []float64{5}},
		{name: "mismatched lengths", xs: []float64{0, 1, 2}, ys: []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if result := Fit(tt.xs, tt.ys); result != nil {
				t.Errorf("Fit() = %+v, want nil", result)
			}
		})
	}
}

func TestFit_ZeroVarianceX(t *testing.T) {
	t.Parallel()

	result := Fit([]float64{3, 3, 3}, []float64{1, 2, 3})
	if result == nil {
		t.Fatal("expected result, got nil")
	}
	if result.Slope != 0 || result.Intercept != 2 {
		t.Errorf("got slope %v intercept %v, want 0 and 2", result.Slope, result.Intercept)
	}
}

func TestStepsToLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		values    []float64
		limit     float64
		wantSteps float64
		wantOK    bool
	}{
		// stock burns 50/day, 300 left at day 3, reorder at 100
		{name: "draining toward limit", values: []float64{450, 400, 350, 300}, limit: 100, wantSteps: 4, wantOK: true},
		{name: "rising toward limit", values: []float64{10, 13, 16, 19}, limit: 25, wantSteps: 2, wantOK: true},
		{name: "already at limit", values: []float64{5, 5, 5}, limit: 5, wantSteps: 0, wantOK: true},
		{name: "moving away", values: []float64{10, 20, 30}, limit: 0, wantOK: false},
		{name: "flat and apart", values: []float64{10, 10, 10}, limit: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			steps, ok := Trend(tt.values).StepsToLimit(tt.limit)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(steps-tt.wantSteps) > 0.001 {
				t.Errorf("steps = %v, want %v", steps, tt.wantSteps)
			}
		})
	}
}

func TestDaysSince(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got := DaysSince([]time.Time{base, base.Add(12 * time.Hour), base.AddDate(0, 0, 3)})
	want := []float64{0, 0.5, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("DaysSince[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if DaysSince(nil) != nil {
		t.Error("DaysSince(nil) should be nil")
	}
}
