package alert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/core"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EvaluatorDeps are the collaborators of an Evaluator. Bus and Now are optional.
type EvaluatorDeps struct {
	Logger     *zap.Logger
	Config     Config
	Rules      *RuleRegistry
	History    History
	Dispatcher roles.ActionDispatcher
	Bus        core.Publisher
	Now        func() time.Time
}

// Evaluator checks tenant snapshots against the rule registry, records the
// alerts raised and dispatches their actions in the background.
type Evaluator struct {
	logger     *zap.Logger
	cfg        Config
	rules      *RuleRegistry
	history    History
	dispatcher roles.ActionDispatcher
	bus        core.Publisher
	now        func() time.Time

	// locks holds the cooldown check and the history append for one
	// (tenant, rule) together, so concurrent checks raise at most one alert.
	locks    ruleLocks
	inflight sync.WaitGroup
}

// NewEvaluator creates an evaluator from deps.
func NewEvaluator(deps EvaluatorDeps) *Evaluator {
	def := DefaultConfig()
	cfg := deps.Config
	if cfg.DefaultCooldown < 0 {
		cfg.DefaultCooldown = 0
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := deps.Rules
	if rules == nil {
		rules, _ = NewRuleRegistry()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		logger:     logger,
		cfg:        cfg,
		rules:      rules,
		history:    deps.History,
		dispatcher: deps.Dispatcher,
		bus:        deps.Bus,
		now:        now,
	}
}

// Rules returns the evaluator's rule registry.
func (e *Evaluator) Rules() *RuleRegistry {
	return e.rules
}

// CheckAlerts evaluates every rule against snapshot and returns the alerts
// triggered by this call. Rules are independent: a rule that errors or panics
// is logged and treated as not triggered. Action dispatch runs asynchronously
// and never affects the returned alerts.
func (e *Evaluator) CheckAlerts(ctx context.Context, tenantID string, snapshot analytics.Snapshot) []analytics.Alert {
	var triggered []analytics.Alert

	for _, rule := range e.rules.All() {
		if !e.evaluate(tenantID, rule, snapshot) {
			continue
		}
		alert, ok := e.record(ctx, tenantID, rule, snapshot)
		if !ok {
			alertsSuppressed.WithLabelValues(rule.ID).Inc()
			continue
		}

		alertsTriggered.WithLabelValues(rule.ID, string(rule.Severity)).Inc()
		e.logger.Info("alert triggered",
			zap.String("alert_id", alert.ID),
			zap.String("tenant_id", tenantID),
			zap.String("rule_id", rule.ID),
			zap.String("severity", string(rule.Severity)),
		)

		if e.bus != nil {
			payload := alert
			if err := e.bus.Publish(ctx, core.Event{
				Topic:     TopicAlertTriggered,
				Source:    "alert",
				Timestamp: alert.TriggeredAt,
				Payload:   &payload,
			}); err != nil {
				e.logger.Debug("publish alert event failed", zap.Error(err))
			}
		}

		e.dispatch(ctx, alert)
		triggered = append(triggered, alert)
	}

	return triggered
}

// Wait blocks until every in-flight action dispatch has finished.
func (e *Evaluator) Wait() {
	e.inflight.Wait()
}

// record builds and stores the alert for a fired rule unless the rule is
// cooling down for the tenant. It reports false when the alert is suppressed.
func (e *Evaluator) record(ctx context.Context, tenantID string, rule Rule, snapshot analytics.Snapshot) (analytics.Alert, bool) {
	unlock := e.locks.lock(tenantID, rule.ID)
	defer unlock()

	if e.coolingDown(ctx, tenantID, rule) {
		return analytics.Alert{}, false
	}

	alert := analytics.Alert{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		TenantID:    tenantID,
		Severity:    rule.Severity,
		Message:     rule.Message(snapshot),
		Data:        snapshot.Clone(),
		TriggeredAt: e.now().UTC(),
		Actions:     slices.Clone(rule.Actions),
		Status:      analytics.AlertStatusActive,
	}

	if e.history != nil {
		if err := e.history.AppendAlert(ctx, &alert); err != nil {
			e.logger.Error("failed to record alert",
				zap.String("tenant_id", tenantID),
				zap.String("rule_id", rule.ID),
				zap.Error(err),
			)
		}
	}
	return alert, true
}

// evaluate runs the rule's condition, containing errors and panics.
func (e *Evaluator) evaluate(tenantID string, rule Rule, snapshot analytics.Snapshot) (fired bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("alert rule panicked",
				zap.String("tenant_id", tenantID),
				zap.String("rule_id", rule.ID),
				zap.Any("panic", r),
			)
			fired = false
		}
	}()

	ok, err := rule.Condition.Evaluate(snapshot)
	switch {
	case errors.Is(err, ErrMissingMetric):
		e.logger.Debug("alert rule skipped",
			zap.String("tenant_id", tenantID),
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
		return false
	case err != nil:
		e.logger.Warn("alert rule evaluation failed",
			zap.String("tenant_id", tenantID),
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// coolingDown reports whether the rule fired for the tenant within its
// cooldown window. A failed lookup does not suppress the alert.
func (e *Evaluator) coolingDown(ctx context.Context, tenantID string, rule Rule) bool {
	window := rule.Cooldown
	if window <= 0 {
		window = e.cfg.DefaultCooldown
	}
	if window <= 0 || e.history == nil {
		return false
	}

	last, err := e.history.LastTriggered(ctx, tenantID, rule.ID)
	if err != nil {
		e.logger.Warn("cooldown check failed, proceeding with alert",
			zap.String("tenant_id", tenantID),
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
		return false
	}
	if last == nil {
		return false
	}
	if e.now().Sub(*last) < window {
		e.logger.Debug("alert suppressed by cooldown",
			zap.String("tenant_id", tenantID),
			zap.String("rule_id", rule.ID),
			zap.Time("last_triggered", *last),
		)
		return true
	}
	return false
}

// dispatch runs the alert's actions in order on a background goroutine. The
// goroutine outlives ctx; each action gets its own timeout.
func (e *Evaluator) dispatch(ctx context.Context, alert analytics.Alert) {
	if e.dispatcher == nil || len(alert.Actions) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		for _, action := range alert.Actions {
			err := e.runAction(base, action, &alert)
			outcome := "success"
			if err != nil {
				outcome = "failure"
				e.logger.Warn("alert action failed",
					zap.String("alert_id", alert.ID),
					zap.String("tenant_id", alert.TenantID),
					zap.String("action", action),
					zap.Error(err),
				)
			}
			actionDispatches.WithLabelValues(action, outcome).Inc()
		}
	}()
}

func (e *Evaluator) runAction(ctx context.Context, action string, alert *analytics.Alert) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DispatchTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", action, r)
		}
	}()
	return e.dispatcher.Dispatch(ctx, action, alert)
}

// ruleLocks is a keyed mutex over (tenant, rule) pairs.
type ruleLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *ruleLocks) lock(tenantID, ruleID string) (unlock func()) {
	key := tenantID + "\x00" + ruleID
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
