package alert

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/tpminsight/internal/testutil"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAlert(id, tenant, rule string, at time.Time) *analytics.Alert {
	a := testutil.NewAlert(
		testutil.WithTenant(tenant),
		testutil.WithRule(rule, rule),
		testutil.WithTriggeredAt(at),
	)
	a.ID = id
	a.Message = rule + " fired"
	return &a
}

func TestAlertStore_AppendAndList(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a1", "acme", "low_inventory", testNow)))
	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a2", "acme", "budget_overrun", testNow.Add(time.Hour))))
	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a3", "globex", "low_inventory", testNow)))

	alerts, err := s.ListAlerts(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a2", alerts[0].ID, "newest first")
	assert.Equal(t, "a1", alerts[1].ID)

	got := alerts[1]
	assert.Equal(t, analytics.SeverityMedium, got.Severity)
	assert.Equal(t, analytics.Snapshot{MetricStockLevel: 42}, got.Data)
	assert.Equal(t, []string{ActionNotifyInventory}, got.Actions)
	assert.True(t, got.TriggeredAt.Equal(testNow))

	limited, err := s.ListAlerts(ctx, "acme", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := s.CountAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAlertStore_AppendDuplicateID(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a1", "acme", "low_inventory", testNow)))
	assert.Error(t, s.AppendAlert(ctx, sampleAlert("a1", "acme", "low_inventory", testNow)))
}

func TestAlertStore_LastTriggered(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()

	last, err := s.LastTriggered(ctx, "acme", "low_inventory")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a1", "acme", "low_inventory", testNow)))
	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a2", "acme", "low_inventory", testNow.Add(2*time.Hour))))
	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a3", "acme", "revenue_drop", testNow.Add(5*time.Hour))))

	last, err = s.LastTriggered(ctx, "acme", "low_inventory")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(testNow.Add(2*time.Hour)), "got %v", last)

	last, err = s.LastTriggered(ctx, "globex", "low_inventory")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestAlertStore_Acknowledge(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendAlert(ctx, sampleAlert("a1", "acme", "low_inventory", testNow)))

	require.NoError(t, s.AcknowledgeAlert(ctx, "acme", "a1"))
	alerts, err := s.ListAlerts(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, analytics.AlertStatusAcknowledged, alerts[0].Status)

	assert.ErrorIs(t, s.AcknowledgeAlert(ctx, "globex", "a1"), ErrAlertNotFound)
	assert.ErrorIs(t, s.AcknowledgeAlert(ctx, "acme", "missing"), ErrAlertNotFound)
}

func TestAlertStore_Reports(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()

	a := sampleAlert("a1", "acme", "low_inventory", testNow)
	r := BuildReport(a, testNow.Add(time.Minute))
	require.NoError(t, s.InsertReport(ctx, r))

	reports, err := s.ListReports(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
	assert.Equal(t, "a1", reports[0].AlertID)
	assert.Equal(t, r.Body, reports[0].Body)

	none, err := s.ListReports(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, none)
}
