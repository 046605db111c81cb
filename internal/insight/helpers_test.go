package insight

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/tpminsight/internal/testutil"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
)

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

func series(values ...float64) []analytics.Point {
	return testutil.DailySeries(testDay, values...)
}

func linear(n int, start, step float64) []float64 { return testutil.Linear(n, start, step) }

func weeklyPattern(weeks int) []float64 { return testutil.WeeklyPattern(weeks) }

// fakeData is an in-memory roles.DataSource.
type fakeData struct {
	mu       sync.Mutex
	series   map[string][]analytics.Point
	snapshot analytics.Snapshot
	err      error
	calls    int
}

var _ roles.DataSource = (*fakeData)(nil)

func newFakeData() *fakeData {
	return &fakeData{series: make(map[string][]analytics.Point)}
}

func (f *fakeData) with(metric string, values ...float64) *fakeData {
	f.series[metric] = series(values...)
	return f
}

func (f *fakeData) Snapshot(_ context.Context, _ string) (analytics.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.Clone(), f.err
}

func (f *fakeData) Series(_ context.Context, _ string, metric string, _ int) ([]analytics.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series[metric], nil
}

// fakePredictions returns fixed values per kind.
type fakePredictions struct {
	values map[string][]float64
	err    error
}

func (f fakePredictions) Forecast(_ context.Context, kind string, _ roles.PredictionParams) ([]float64, error) {
	return f.values[kind], f.err
}

// fakeRecs returns fixed recommendations.
type fakeRecs struct {
	recs []analytics.Recommendation
	err  error
}

func (f fakeRecs) Recommend(_ context.Context, _ roles.RecommendationContext) ([]analytics.Recommendation, error) {
	return f.recs, f.err
}

// recordingWriter captures ReplaceInsights calls.
type recordingWriter struct {
	mu    sync.Mutex
	calls map[string][][]analytics.Insight
	err   error
}

func (w *recordingWriter) ReplaceInsights(_ context.Context, tenantID string, insights []analytics.Insight) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.calls == nil {
		w.calls = make(map[string][][]analytics.Insight)
	}
	w.calls[tenantID] = append(w.calls[tenantID], insights)
	return w.err
}

func (w *recordingWriter) count(tenantID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls[tenantID])
}

func fixed(ins analytics.Insight) Generator {
	return GeneratorFunc(func(context.Context, Input) (*analytics.Insight, error) {
		cp := ins
		return &cp, nil
	})
}

func testInput(data roles.DataSource) Input {
	cfg := DefaultConfig()
	return Input{
		TenantID:    "acme",
		RangeDays:   cfg.TimeRangeDays,
		HorizonDays: cfg.ForecastHorizonDays,
		MinPoints:   cfg.MinPoints,
		Now:         testDay,
		Analyzer:    NewAnalyzer(cfg),
		Data:        data,
	}
}
