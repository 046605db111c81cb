package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/HerbHall/tpminsight/internal/event"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRouter_UnknownAction(t *testing.T) {
	r := NewRouter(nil, zaptest.NewLogger(t))
	err := r.Dispatch(context.Background(), "page_oncall", sampleAlert("a", "acme", "x", testNow))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestRouter_DispatchPublishesDelivery(t *testing.T) {
	bus := event.NewBus(zaptest.NewLogger(t))
	var (
		mu         sync.Mutex
		deliveries []Delivery
	)
	bus.Subscribe(TopicActionDelivered, func(_ context.Context, ev core.Event) {
		mu.Lock()
		defer mu.Unlock()
		deliveries = append(deliveries, ev.Payload.(Delivery))
	})

	r := NewRouter(bus, zaptest.NewLogger(t))
	r.Handle("ok", ActionFunc(func(context.Context, *analytics.Alert) error { return nil }))
	r.Handle("bad", ActionFunc(func(context.Context, *analytics.Alert) error { return errBoom }))

	alert := sampleAlert("a1", "acme", "revenue_drop", testNow)
	require.NoError(t, r.Dispatch(context.Background(), "ok", alert))
	assert.ErrorIs(t, r.Dispatch(context.Background(), "bad", alert), errBoom)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deliveries, 2)
	assert.Equal(t, Delivery{AlertID: "a1", TenantID: "acme", Action: "ok"}, deliveries[0])
	assert.Equal(t, "bad", deliveries[1].Action)
	assert.Equal(t, "boom", deliveries[1].Error)
}

func TestNewDefaultRouter_WithoutWebhook(t *testing.T) {
	s := testAlertStore(t)
	r := NewDefaultRouter(s, nil, nil, zaptest.NewLogger(t))
	assert.Equal(t, []string{ActionGenerateReport, ActionNotifyInventory, ActionNotifyManagement, ActionNotifySales}, r.Actions())

	alert := sampleAlert("a1", "acme", "revenue_drop", testNow)
	require.NoError(t, r.Dispatch(context.Background(), ActionNotifyManagement, alert))
	require.NoError(t, r.Dispatch(context.Background(), ActionGenerateReport, alert))

	reports, err := s.ListReports(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "a1", reports[0].AlertID)
}

func TestNewDefaultRouter_NotifyUsesWebhook(t *testing.T) {
	var events []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &p)
		mu.Lock()
		events = append(events, p.EventType)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewDefaultRouter(nil, NewWebhookNotifier(WebhookConfig{URL: srv.URL}), nil, zaptest.NewLogger(t))
	alert := sampleAlert("a1", "acme", "churn_spike", testNow)
	require.NoError(t, r.Dispatch(context.Background(), ActionNotifySales, alert))
	require.NoError(t, r.Dispatch(context.Background(), ActionNotifyManagement, alert))

	err := r.Dispatch(context.Background(), ActionGenerateReport, alert)
	assert.ErrorIs(t, err, ErrUnknownAction, "report action needs a writer")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ActionNotifySales, ActionNotifyManagement}, events)
}

func TestBuildReport(t *testing.T) {
	alert := sampleAlert("a1", "acme", "low_inventory", testNow)
	alert.Data = analytics.Snapshot{MetricStockLevel: 42, MetricBudgetUtilization: 50}

	r := BuildReport(alert, testNow)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "low_inventory report for acme", r.Title)
	assert.Contains(t, r.Body, "Severity: medium")
	assert.Contains(t, r.Body, "Triggered: 2026-03-02T09:00:00Z")
	// Snapshot keys are sorted.
	assert.Less(t, strings.Index(r.Body, MetricBudgetUtilization), strings.Index(r.Body, MetricStockLevel))
}
