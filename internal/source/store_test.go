package source

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/tpminsight/internal/store"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background(), "source", Migrations()))
	s := NewStore(db.DB())
	s.now = func() time.Time { return testNow }
	return s
}

func day(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func TestStore_Tenants(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTenant(ctx, Tenant{ID: "globex", Name: "Globex", Active: true}))
	require.NoError(t, s.UpsertTenant(ctx, Tenant{ID: "acme", Name: "Acme", Active: true}))
	require.NoError(t, s.UpsertTenant(ctx, Tenant{ID: "initech", Name: "Initech", Active: false}))

	ids, err := s.ListActiveTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, ids)

	// Deactivate via upsert.
	require.NoError(t, s.UpsertTenant(ctx, Tenant{ID: "globex", Name: "Globex Corp", Active: false}))
	ids, err = s.ListActiveTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, ids)

	all, err := s.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Globex Corp", all[1].Name)
	assert.False(t, all[1].Active)
	assert.True(t, all[1].CreatedAt.Equal(testNow))

	assert.Error(t, s.UpsertTenant(ctx, Tenant{}))
}

func TestStore_InsertPointsCreatesTenant(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPoints(ctx, "acme", []MetricPoint{
		{Metric: "revenue", Timestamp: day(1), Value: 100},
	}))

	ids, err := s.ListActiveTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, ids)
}

func TestStore_InsertPointsValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.InsertPoints(ctx, "", []MetricPoint{{Metric: "revenue"}}), ErrInvalidPoint)
	assert.ErrorIs(t, s.InsertPoints(ctx, "acme", []MetricPoint{{Metric: "revenue", Value: 1}, {Metric: " "}}), ErrInvalidPoint)

	ids, err := s.ListActiveTenants(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "rejected batch must not create the tenant")
}

func TestStore_Snapshot(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPoints(ctx, "acme", []MetricPoint{
		{Metric: "stockLevel", Timestamp: day(3), Value: 300},
		{Metric: "stockLevel", Timestamp: day(1), Value: 80},
		{Metric: "stockLevel", Timestamp: day(2), Value: 150},
		{Metric: "revenueChange", Timestamp: day(1), Value: -12},
	}))
	require.NoError(t, s.InsertPoints(ctx, "globex", []MetricPoint{
		{Metric: "stockLevel", Timestamp: day(1), Value: 999},
	}))

	snap, err := s.Snapshot(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, analytics.Snapshot{"stockLevel": 80, "revenueChange": -12}, snap)

	empty, err := s.Snapshot(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_SnapshotReplacesSameTimestamp(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPoints(ctx, "acme", []MetricPoint{{Metric: "stockLevel", Timestamp: day(1), Value: 80}}))
	require.NoError(t, s.InsertPoints(ctx, "acme", []MetricPoint{{Metric: "stockLevel", Timestamp: day(1), Value: 90}}))

	snap, err := s.Snapshot(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 90.0, snap["stockLevel"])
}

func TestStore_Series(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var points []MetricPoint
	for i := 40; i >= 1; i-- {
		points = append(points, MetricPoint{Metric: "revenue", Timestamp: day(i), Value: float64(100 + i)})
	}
	points = append(points, MetricPoint{Metric: "units_sold", Timestamp: day(1), Value: 5})
	require.NoError(t, s.InsertPoints(ctx, "acme", points))

	series, err := s.Series(ctx, "acme", "revenue", 30)
	require.NoError(t, err)
	require.Len(t, series, 30)
	assert.True(t, series[0].Timestamp.Equal(day(30)), "oldest point first, got %v", series[0].Timestamp)
	assert.Equal(t, 130.0, series[0].Value)
	assert.Equal(t, 101.0, series[29].Value)

	all, err := s.Series(ctx, "acme", "revenue", 0)
	require.NoError(t, err)
	assert.Len(t, all, 40)

	none, err := s.Series(ctx, "acme", "churn_rate", 30)
	require.NoError(t, err)
	assert.Empty(t, none)
}
