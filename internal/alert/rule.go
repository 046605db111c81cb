// Package alert evaluates threshold rules against tenant metric snapshots,
// records the alerts they raise and dispatches the rules' actions.
package alert

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
)

var (
	// ErrMissingMetric is returned by a condition whose metric is absent from
	// the snapshot. The rule is treated as not triggered.
	ErrMissingMetric = errors.New("metric missing from snapshot")

	// ErrDuplicateRule is returned when two rules share an ID.
	ErrDuplicateRule = errors.New("duplicate alert rule")
)

// Snapshot indicators read by the built-in rules.
const (
	MetricRevenueChange     = "revenueChange"
	MetricHighRiskCustomers = "highRiskCustomers"
	MetricStockLevel        = "stockLevel"
	MetricBudgetUtilization = "budgetUtilization"
	MetricPriceChange       = "priceChange"
)

// Built-in action names.
const (
	ActionNotifyManagement = "notify_management"
	ActionNotifySales      = "notify_sales"
	ActionNotifyInventory  = "notify_inventory"
	ActionGenerateReport   = "generate_report"
)

// Condition decides whether a rule fires for a snapshot.
type Condition interface {
	Evaluate(s analytics.Snapshot) (bool, error)
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(s analytics.Snapshot) (bool, error)

// Evaluate calls f.
func (f ConditionFunc) Evaluate(s analytics.Snapshot) (bool, error) {
	return f(s)
}

// Operator compares a metric with a threshold.
type Operator string

const (
	OpLessThan    Operator = "<"
	OpGreaterThan Operator = ">"
)

// Threshold fires when Metric (or its absolute value) compares true against Value.
type Threshold struct {
	Metric   string
	Op       Operator
	Value    float64
	Absolute bool
}

// Evaluate implements Condition.
func (t Threshold) Evaluate(s analytics.Snapshot) (bool, error) {
	v, ok := s.Get(t.Metric)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingMetric, t.Metric)
	}
	if t.Absolute {
		v = math.Abs(v)
	}
	switch t.Op {
	case OpLessThan:
		return v < t.Value, nil
	case OpGreaterThan:
		return v > t.Value, nil
	default:
		return false, fmt.Errorf("unknown operator %q", t.Op)
	}
}

func (t Threshold) String() string {
	metric := t.Metric
	if t.Absolute {
		metric = "abs(" + metric + ")"
	}
	return fmt.Sprintf("%s %s %g", metric, t.Op, t.Value)
}

// Rule is a named condition with the actions to run when it fires.
type Rule struct {
	ID          string
	Name        string
	Description string
	Condition   Condition
	Severity    analytics.Severity
	Actions     []string
	Cooldown    time.Duration // 0 uses the evaluator default
}

// Message describes a firing of r.
func (r Rule) Message(s analytics.Snapshot) string {
	if t, ok := r.Condition.(Threshold); ok {
		v, _ := s.Get(t.Metric)
		return fmt.Sprintf("%s: %s is %g (threshold %s)", r.Name, t.Metric, v, t)
	}
	return r.Name + " triggered"
}

// RuleRegistry is an immutable, ordered set of rules keyed by ID.
type RuleRegistry struct {
	rules []Rule
	byID  map[string]int
}

// NewRuleRegistry validates rules and returns a registry preserving their order.
func NewRuleRegistry(rules ...Rule) (*RuleRegistry, error) {
	r := &RuleRegistry{
		rules: make([]Rule, 0, len(rules)),
		byID:  make(map[string]int, len(rules)),
	}
	for _, rule := range rules {
		switch {
		case rule.ID == "":
			return nil, errors.New("alert rule has no id")
		case rule.Condition == nil:
			return nil, fmt.Errorf("alert rule %q has no condition", rule.ID)
		}
		if _, dup := r.byID[rule.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, rule.ID)
		}
		if rule.Name == "" {
			rule.Name = rule.ID
		}
		rule.Actions = slices.Clone(rule.Actions)
		r.byID[rule.ID] = len(r.rules)
		r.rules = append(r.rules, rule)
	}
	return r, nil
}

// Get returns the rule with the given ID.
func (r *RuleRegistry) Get(id string) (Rule, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// All returns a copy of the rules in registration order.
func (r *RuleRegistry) All() []Rule {
	return slices.Clone(r.rules)
}

// Len returns the number of registered rules.
func (r *RuleRegistry) Len() int {
	return len(r.rules)
}

// DefaultRules returns the built-in alert rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "revenue_drop",
			Name:        "Revenue Drop",
			Description: "Revenue fell more than 10% against the previous period",
			Condition:   Threshold{Metric: MetricRevenueChange, Op: OpLessThan, Value: -10},
			Severity:    analytics.SeverityHigh,
			Actions:     []string{ActionNotifyManagement, ActionGenerateReport},
		},
		{
			ID:          "churn_spike",
			Name:        "Churn Spike",
			Description: "More than 50 customers are at high risk of churning",
			Condition:   Threshold{Metric: MetricHighRiskCustomers, Op: OpGreaterThan, Value: 50},
			Severity:    analytics.SeverityHigh,
			Actions:     []string{ActionNotifyManagement, ActionNotifySales},
		},
		{
			ID:          "low_inventory",
			Name:        "Low Inventory",
			Description: "Stock fell below 100 units",
			Condition:   Threshold{Metric: MetricStockLevel, Op: OpLessThan, Value: 100},
			Severity:    analytics.SeverityMedium,
			Actions:     []string{ActionNotifyInventory},
		},
		{
			ID:          "budget_overrun",
			Name:        "Budget Overrun",
			Description: "Promotion budget utilization exceeded 90%",
			Condition:   Threshold{Metric: MetricBudgetUtilization, Op: OpGreaterThan, Value: 90},
			Severity:    analytics.SeverityMedium,
			Actions:     []string{ActionNotifyManagement},
		},
		{
			ID:          "price_volatility",
			Name:        "Price Volatility",
			Description: "Average price moved more than 15% in either direction",
			Condition:   Threshold{Metric: MetricPriceChange, Op: OpGreaterThan, Value: 15, Absolute: true},
			Severity:    analytics.SeverityLow,
			Actions:     []string{ActionGenerateReport},
		},
	}
}
