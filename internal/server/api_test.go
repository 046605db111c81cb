package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/tpminsight/internal/alert"
	"github.com/HerbHall/tpminsight/internal/insight"
	"github.com/HerbHall/tpminsight/internal/source"
	"github.com/HerbHall/tpminsight/internal/testutil"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errStore = errors.New("store offline")

type fakeBackend struct {
	insights  []analytics.Insight
	alerts    []analytics.Alert
	reports   []alert.Report
	snapshot  analytics.Snapshot
	failList  bool
	genErr    error
	ackErr    error
	ingestErr error

	gotOpts     insight.Options
	gotSnapshot analytics.Snapshot
	gotLimit    int
	gotPoints   []source.MetricPoint
}

func (f *fakeBackend) GenerateInsights(_ context.Context, tenantID string, opts insight.Options) (*analytics.InsightReport, error) {
	f.gotOpts = opts
	return &analytics.InsightReport{TenantID: tenantID, Insights: f.insights}, f.genErr
}

func (f *fakeBackend) ListInsights(context.Context, string) ([]analytics.Insight, error) {
	if f.failList {
		return nil, errStore
	}
	return f.insights, nil
}

func (f *fakeBackend) CheckAlerts(_ context.Context, tenantID string, snap analytics.Snapshot) []analytics.Alert {
	f.gotSnapshot = snap
	if v, ok := snap.Get("revenueChange"); ok && v < -10 {
		return []analytics.Alert{{ID: "a1", RuleID: "revenue_drop", TenantID: tenantID}}
	}
	return nil
}

func (f *fakeBackend) ListAlerts(_ context.Context, _ string, limit int) ([]analytics.Alert, error) {
	f.gotLimit = limit
	if f.failList {
		return nil, errStore
	}
	return f.alerts, nil
}

func (f *fakeBackend) AcknowledgeAlert(context.Context, string, string) error { return f.ackErr }

func (f *fakeBackend) ListReports(context.Context, string) ([]alert.Report, error) {
	return f.reports, nil
}

func (f *fakeBackend) Snapshot(context.Context, string) (analytics.Snapshot, error) {
	return f.snapshot, nil
}

func (f *fakeBackend) Series(context.Context, string, string, int) ([]analytics.Point, error) {
	return nil, nil
}

func (f *fakeBackend) InsertPoints(_ context.Context, _ string, points []source.MetricPoint) error {
	f.gotPoints = points
	return f.ingestErr
}

func (f *fakeBackend) GetInsightMetrics(context.Context) (analytics.EngineMetrics, error) {
	return analytics.EngineMetrics{TotalInsights: len(f.insights), AlertRules: 5, Templates: 8}, nil
}

func newTestAPI(t *testing.T, f *fakeBackend) http.Handler {
	t.Helper()
	api := &API{
		Logger:   zaptest.NewLogger(t),
		Pipeline: f,
		Insights: f,
		Checker:  f,
		Alerts:   f,
		Data:     f,
		Ingest:   f,
		Metrics:  f,
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return mux
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAPI_ListInsights(t *testing.T) {
	t.Run("stored insights", func(t *testing.T) {
		f := &fakeBackend{insights: []analytics.Insight{
			testutil.NewInsight(testutil.WithPriority(analytics.PriorityHigh)),
			testutil.NewInsight(),
		}}
		w := serve(t, newTestAPI(t, f), "GET", "/api/v1/tenants/acme/insights", "")
		require.Equal(t, http.StatusOK, w.Code)

		var got []analytics.Insight
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		require.Len(t, got, 2)
		assert.Equal(t, analytics.PriorityHigh, got[0].Priority)
	})

	t.Run("empty list encodes as array", func(t *testing.T) {
		w := serve(t, newTestAPI(t, &fakeBackend{}), "GET", "/api/v1/tenants/acme/insights", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		w := serve(t, newTestAPI(t, &fakeBackend{failList: true}), "GET", "/api/v1/tenants/acme/insights", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})
}

func TestAPI_GenerateInsights(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		genErr   error
		wantCode int
		wantOpts insight.Options
	}{
		{name: "empty body uses defaults", wantCode: http.StatusOK},
		{
			name:     "options decoded",
			body:     `{"types":["revenue_trend"],"time_range_days":14,"include_recommendations":true,"priority":"high"}`,
			wantCode: http.StatusOK,
			wantOpts: insight.Options{Types: []string{"revenue_trend"}, TimeRangeDays: 14, IncludeRecommendations: true, Priority: analytics.PriorityHigh},
		},
		{name: "malformed json", body: `{"types":`, wantCode: http.StatusBadRequest},
		{name: "unknown field", body: `{"kinds":["x"]}`, wantCode: http.StatusBadRequest},
		{name: "invalid priority", body: `{"priority":"urgent"}`, wantCode: http.StatusBadRequest},
		{name: "invalid cadence", body: `{"cadence":"hourly"}`, wantCode: http.StatusBadRequest},
		{name: "store failure", genErr: errStore, wantCode: http.StatusInternalServerError},
		{name: "cancelled run", genErr: fmt.Errorf("wait: %w", context.Canceled), wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBackend{genErr: tt.genErr, insights: []analytics.Insight{}}
			w := serve(t, newTestAPI(t, f), "POST", "/api/v1/tenants/acme/insights/generate", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantOpts, f.gotOpts)

			var report analytics.InsightReport
			require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
			assert.Equal(t, "acme", report.TenantID)
		})
	}
}

func TestAPI_ListAlertsLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 50},
		{query: "?limit=10", want: 10},
		{query: "?limit=1000", want: 1000},
		{query: "?limit=0", want: 50},
		{query: "?limit=5000", want: 50},
		{query: "?limit=abc", want: 50},
	}

	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			f := &fakeBackend{}
			w := serve(t, newTestAPI(t, f), "GET", "/api/v1/tenants/acme/alerts"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, f.gotLimit)
			assert.JSONEq(t, "[]", w.Body.String())
		})
	}
}

func TestAPI_ListAlerts(t *testing.T) {
	f := &fakeBackend{alerts: []analytics.Alert{
		testutil.NewAlert(testutil.WithRule("revenue_drop", "Revenue Drop"), testutil.WithSeverity(analytics.SeverityHigh)),
	}}
	w := serve(t, newTestAPI(t, f), "GET", "/api/v1/tenants/acme/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []analytics.Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "revenue_drop", got[0].RuleID)
	assert.Equal(t, analytics.SeverityHigh, got[0].Severity)
}

func TestAPI_CheckAlerts(t *testing.T) {
	t.Run("explicit snapshot", func(t *testing.T) {
		f := &fakeBackend{}
		w := serve(t, newTestAPI(t, f), "POST", "/api/v1/tenants/acme/alerts/check", `{"revenueChange":-15}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp CheckAlertsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Alerts, 1)
		assert.Equal(t, "revenue_drop", resp.Alerts[0].RuleID)
		assert.Equal(t, "acme", resp.Alerts[0].TenantID)
	})

	t.Run("empty body uses stored snapshot", func(t *testing.T) {
		f := &fakeBackend{snapshot: analytics.Snapshot{"stockLevel": 500}}
		w := serve(t, newTestAPI(t, f), "POST", "/api/v1/tenants/acme/alerts/check", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, analytics.Snapshot{"stockLevel": 500}, f.gotSnapshot)
		assert.JSONEq(t, `{"count":0,"alerts":[]}`, w.Body.String())
	})

	t.Run("non numeric snapshot", func(t *testing.T) {
		w := serve(t, newTestAPI(t, &fakeBackend{}), "POST", "/api/v1/tenants/acme/alerts/check", `{"revenueChange":"down"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAPI_AcknowledgeAlert(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "acknowledged", wantCode: http.StatusNoContent},
		{name: "unknown alert", err: alert.ErrAlertNotFound, wantCode: http.StatusNotFound},
		{name: "store failure", err: errStore, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBackend{ackErr: tt.err}
			w := serve(t, newTestAPI(t, f), "POST", "/api/v1/tenants/acme/alerts/a1/acknowledge", "")
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAPI_ListReports(t *testing.T) {
	f := &fakeBackend{reports: []alert.Report{{ID: "r1", AlertID: "a1", TenantID: "acme", CreatedAt: time.Now()}}}
	w := serve(t, newTestAPI(t, f), "GET", "/api/v1/tenants/acme/reports", "")
	require.Equal(t, http.StatusOK, w.Code)

	var reports []alert.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "r1", reports[0].ID)
}

func TestAPI_IngestMetrics(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{
			name:     "accepted",
			body:     `{"points":[{"metric":"revenue","timestamp":"2026-03-01T00:00:00Z","value":1200}]}`,
			wantCode: http.StatusAccepted,
		},
		{name: "no points", body: `{"points":[]}`, wantCode: http.StatusBadRequest},
		{name: "empty body", wantCode: http.StatusBadRequest},
		{
			name:     "invalid point",
			body:     `{"points":[{"metric":"","value":1}]}`,
			err:      fmt.Errorf("%w: point 0 has no metric", source.ErrInvalidPoint),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "store failure",
			body:     `{"points":[{"metric":"revenue","value":1}]}`,
			err:      errStore,
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeBackend{ingestErr: tt.err}
			w := serve(t, newTestAPI(t, f), "POST", "/api/v1/tenants/acme/metrics", tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusAccepted {
				assert.JSONEq(t, `{"accepted":1}`, w.Body.String())
				require.Len(t, f.gotPoints, 1)
				assert.Equal(t, "revenue", f.gotPoints[0].Metric)
			}
		})
	}
}

func TestAPI_EngineMetrics(t *testing.T) {
	f := &fakeBackend{insights: []analytics.Insight{{Type: "revenue_trend"}}}
	w := serve(t, newTestAPI(t, f), "GET", "/api/v1/insights/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var m analytics.EngineMetrics
	require.NoError(t, json.NewDecoder(w.Body).Decode(&m))
	assert.Equal(t, 1, m.TotalInsights)
	assert.Equal(t, 5, m.AlertRules)
	assert.Equal(t, 8, m.Templates)
}
