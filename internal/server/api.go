package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/HerbHall/tpminsight/internal/alert"
	"github.com/HerbHall/tpminsight/internal/insight"
	"github.com/HerbHall/tpminsight/internal/source"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// InsightService runs the insight pipeline.
type InsightService interface {
	GenerateInsights(ctx context.Context, tenantID string, opts insight.Options) (*analytics.InsightReport, error)
}

// InsightReader lists stored insights.
type InsightReader interface {
	ListInsights(ctx context.Context, tenantID string) ([]analytics.Insight, error)
}

// AlertChecker evaluates alert rules.
type AlertChecker interface {
	CheckAlerts(ctx context.Context, tenantID string, snapshot analytics.Snapshot) []analytics.Alert
}

// AlertReader reads and updates alert history.
type AlertReader interface {
	ListAlerts(ctx context.Context, tenantID string, limit int) ([]analytics.Alert, error)
	AcknowledgeAlert(ctx context.Context, tenantID, alertID string) error
	ListReports(ctx context.Context, tenantID string) ([]alert.Report, error)
}

// MetricIngester records metric observations.
type MetricIngester interface {
	InsertPoints(ctx context.Context, tenantID string, points []source.MetricPoint) error
}

// MetricsReporter summarizes engine state.
type MetricsReporter interface {
	GetInsightMetrics(ctx context.Context) (analytics.EngineMetrics, error)
}

// API serves the tenant insight and alert endpoints.
type API struct {
	Logger   *zap.Logger
	Pipeline InsightService
	Insights InsightReader
	Checker  AlertChecker
	Alerts   AlertReader
	Data     roles.DataSource
	Ingest   MetricIngester
	Metrics  MetricsReporter
}

// RegisterRoutes implements RouteRegistrar.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/tenants/{tenant_id}/insights", a.handleListInsights)
	mux.HandleFunc("POST /api/v1/tenants/{tenant_id}/insights/generate", a.handleGenerate)
	mux.HandleFunc("GET /api/v1/tenants/{tenant_id}/alerts", a.handleListAlerts)
	mux.HandleFunc("POST /api/v1/tenants/{tenant_id}/alerts/check", a.handleCheckAlerts)
	mux.HandleFunc("POST /api/v1/tenants/{tenant_id}/alerts/{alert_id}/acknowledge", a.handleAcknowledge)
	mux.HandleFunc("GET /api/v1/tenants/{tenant_id}/reports", a.handleListReports)
	mux.HandleFunc("POST /api/v1/tenants/{tenant_id}/metrics", a.handleIngest)
	mux.HandleFunc("GET /api/v1/insights/metrics", a.handleEngineMetrics)
}

func (a *API) handleListInsights(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")
	insights, err := a.Insights.ListInsights(r.Context(), tenantID)
	if err != nil {
		a.Logger.Warn("failed to list insights", zap.String("tenant_id", tenantID), zap.Error(err))
		InternalError(w, "failed to list insights", r.URL.Path)
		return
	}
	if insights == nil {
		insights = []analytics.Insight{}
	}
	writeJSON(w, http.StatusOK, insights)
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")

	var opts insight.Options
	if empty, err := decodeBody(r, &opts); err != nil && !empty {
		BadRequest(w, "invalid generate options: "+err.Error(), r.URL.Path)
		return
	}
	if opts.Priority != "" && !opts.Priority.Valid() {
		BadRequest(w, "priority must be low, medium or high", r.URL.Path)
		return
	}
	if opts.Cadence != "" && !opts.Cadence.Valid() {
		BadRequest(w, "cadence must be daily or weekly", r.URL.Path)
		return
	}

	report, err := a.Pipeline.GenerateInsights(r.Context(), tenantID, opts)
	if err != nil {
		a.Logger.Warn("insight generation failed", zap.String("tenant_id", tenantID), zap.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			Unavailable(w, "insight generation was cancelled", r.URL.Path)
			return
		}
		InternalError(w, "insights were generated but could not be stored", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")
	alerts, err := a.Alerts.ListAlerts(r.Context(), tenantID, parseLimit(r, 50))
	if err != nil {
		a.Logger.Warn("failed to list alerts", zap.String("tenant_id", tenantID), zap.Error(err))
		InternalError(w, "failed to list alerts", r.URL.Path)
		return
	}
	if alerts == nil {
		alerts = []analytics.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// CheckAlertsResponse is the response for POST /tenants/{tenant_id}/alerts/check.
type CheckAlertsResponse struct {
	Count  int               `json:"count"`
	Alerts []analytics.Alert `json:"alerts"`
}

func (a *API) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")

	var snap analytics.Snapshot
	empty, err := decodeBody(r, &snap)
	switch {
	case err != nil && !empty:
		BadRequest(w, "snapshot must be a JSON object of numbers: "+err.Error(), r.URL.Path)
		return
	case empty:
		snap, err = a.Data.Snapshot(r.Context(), tenantID)
		if err != nil {
			a.Logger.Warn("failed to load snapshot", zap.String("tenant_id", tenantID), zap.Error(err))
			InternalError(w, "failed to load tenant snapshot", r.URL.Path)
			return
		}
	}

	alerts := a.Checker.CheckAlerts(r.Context(), tenantID, snap)
	if alerts == nil {
		alerts = []analytics.Alert{}
	}
	writeJSON(w, http.StatusOK, CheckAlertsResponse{Count: len(alerts), Alerts: alerts})
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	tenantID, alertID := r.PathValue("tenant_id"), r.PathValue("alert_id")
	err := a.Alerts.AcknowledgeAlert(r.Context(), tenantID, alertID)
	switch {
	case errors.Is(err, alert.ErrAlertNotFound):
		NotFound(w, "alert not found", r.URL.Path)
	case err != nil:
		a.Logger.Warn("failed to acknowledge alert", zap.String("alert_id", alertID), zap.Error(err))
		InternalError(w, "failed to acknowledge alert", r.URL.Path)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) handleListReports(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")
	reports, err := a.Alerts.ListReports(r.Context(), tenantID)
	if err != nil {
		a.Logger.Warn("failed to list reports", zap.String("tenant_id", tenantID), zap.Error(err))
		InternalError(w, "failed to list reports", r.URL.Path)
		return
	}
	if reports == nil {
		reports = []alert.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// IngestRequest is the body of POST /tenants/{tenant_id}/metrics.
type IngestRequest struct {
	Points []source.MetricPoint `json:"points"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")

	var req IngestRequest
	if _, err := decodeBody(r, &req); err != nil {
		BadRequest(w, "invalid ingest body: "+err.Error(), r.URL.Path)
		return
	}
	if len(req.Points) == 0 {
		BadRequest(w, "points must not be empty", r.URL.Path)
		return
	}

	if err := a.Ingest.InsertPoints(r.Context(), tenantID, req.Points); err != nil {
		if errors.Is(err, source.ErrInvalidPoint) {
			BadRequest(w, err.Error(), r.URL.Path)
			return
		}
		a.Logger.Warn("failed to ingest metrics", zap.String("tenant_id", tenantID), zap.Error(err))
		InternalError(w, "failed to store metrics", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.Points)})
}

func (a *API) handleEngineMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := a.Metrics.GetInsightMetrics(r.Context())
	if err != nil {
		a.Logger.Warn("failed to compute engine metrics", zap.Error(err))
		InternalError(w, "failed to compute engine metrics", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeBody decodes a JSON body into dst. empty reports whether the body had
// no content, in which case err is io.EOF.
func decodeBody(r *http.Request, dst any) (empty bool, err error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err = dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return true, err
	}
	return false, err
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
