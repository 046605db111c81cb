package alert

import (
	"testing"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreshold_Evaluate(t *testing.T) {
	tests := []struct {
		name    string
		cond    Threshold
		snap    analytics.Snapshot
		want    bool
		wantErr error
	}{
		{
			name: "below fires",
			cond: Threshold{Metric: MetricRevenueChange, Op: OpLessThan, Value: -10},
			snap: analytics.Snapshot{MetricRevenueChange: -15},
			want: true,
		},
		{
			name: "above does not fire",
			cond: Threshold{Metric: MetricRevenueChange, Op: OpLessThan, Value: -10},
			snap: analytics.Snapshot{MetricRevenueChange: -5},
		},
		{
			name: "equal is not strict",
			cond: Threshold{Metric: MetricStockLevel, Op: OpLessThan, Value: 100},
			snap: analytics.Snapshot{MetricStockLevel: 100},
		},
		{
			name: "greater than fires",
			cond: Threshold{Metric: MetricHighRiskCustomers, Op: OpGreaterThan, Value: 50},
			snap: analytics.Snapshot{MetricHighRiskCustomers: 51},
			want: true,
		},
		{
			name: "absolute negative fires",
			cond: Threshold{Metric: MetricPriceChange, Op: OpGreaterThan, Value: 15, Absolute: true},
			snap: analytics.Snapshot{MetricPriceChange: -20},
			want: true,
		},
		{
			name: "absolute within band",
			cond: Threshold{Metric: MetricPriceChange, Op: OpGreaterThan, Value: 15, Absolute: true},
			snap: analytics.Snapshot{MetricPriceChange: -12},
		},
		{
			name:    "missing metric",
			cond:    Threshold{Metric: MetricStockLevel, Op: OpLessThan, Value: 100},
			snap:    analytics.Snapshot{MetricRevenueChange: -50},
			wantErr: ErrMissingMetric,
		},
		{
			name:    "nil snapshot",
			cond:    Threshold{Metric: MetricStockLevel, Op: OpLessThan, Value: 100},
			wantErr: ErrMissingMetric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Evaluate(tt.snap)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThreshold_UnknownOperator(t *testing.T) {
	_, err := Threshold{Metric: "x", Op: "=="}.Evaluate(analytics.Snapshot{"x": 1})
	assert.Error(t, err)
}

func TestThreshold_String(t *testing.T) {
	assert.Equal(t, "revenueChange < -10", Threshold{Metric: MetricRevenueChange, Op: OpLessThan, Value: -10}.String())
	assert.Equal(t, "abs(priceChange) > 15",
		Threshold{Metric: MetricPriceChange, Op: OpGreaterThan, Value: 15, Absolute: true}.String())
}

func TestRuleRegistry(t *testing.T) {
	r, err := NewRuleRegistry(DefaultRules()...)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Len())

	ids := make([]string, 0, r.Len())
	for _, rule := range r.All() {
		ids = append(ids, rule.ID)
	}
	assert.Equal(t, []string{"revenue_drop", "churn_spike", "low_inventory", "budget_overrun", "price_volatility"}, ids)

	rule, ok := r.Get("churn_spike")
	require.True(t, ok)
	assert.Equal(t, analytics.SeverityHigh, rule.Severity)
	assert.Equal(t, []string{ActionNotifyManagement, ActionNotifySales}, rule.Actions)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestRuleRegistry_Validation(t *testing.T) {
	cond := Threshold{Metric: "x", Op: OpLessThan}

	_, err := NewRuleRegistry(Rule{ID: "a", Condition: cond}, Rule{ID: "a", Condition: cond})
	assert.ErrorIs(t, err, ErrDuplicateRule)

	_, err = NewRuleRegistry(Rule{Condition: cond})
	assert.Error(t, err)

	_, err = NewRuleRegistry(Rule{ID: "a"})
	assert.Error(t, err)

	r, err := NewRuleRegistry(Rule{ID: "a", Condition: cond})
	require.NoError(t, err)
	rule, _ := r.Get("a")
	assert.Equal(t, "a", rule.Name, "name defaults to id")
}

func TestRuleRegistry_AllIsCopy(t *testing.T) {
	r, err := NewRuleRegistry(DefaultRules()...)
	require.NoError(t, err)

	all := r.All()
	all[0].ID = "mutated"
	first, _ := r.Get("revenue_drop")
	assert.Equal(t, "revenue_drop", first.ID)
	assert.Equal(t, "revenue_drop", r.All()[0].ID)
}

func TestRule_Message(t *testing.T) {
	rule := DefaultRules()[0]
	msg := rule.Message(analytics.Snapshot{MetricRevenueChange: -15})
	assert.Equal(t, "Revenue Drop: revenueChange is -15 (threshold revenueChange < -10)", msg)

	custom := Rule{Name: "Custom", Condition: ConditionFunc(func(analytics.Snapshot) (bool, error) { return true, nil })}
	assert.Equal(t, "Custom triggered", custom.Message(nil))
}
