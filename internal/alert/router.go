package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/core"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"go.uber.org/zap"
)

// ErrUnknownAction is returned when a rule names an action the router has no
// handler for.
var ErrUnknownAction = errors.New("unknown alert action")

// Action performs one side effect for a triggered alert.
type Action interface {
	Run(ctx context.Context, alert *analytics.Alert) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, alert *analytics.Alert) error

// Run calls f.
func (f ActionFunc) Run(ctx context.Context, alert *analytics.Alert) error {
	return f(ctx, alert)
}

// Delivery is published for every dispatched action.
type Delivery struct {
	AlertID  string `json:"alert_id"`
	TenantID string `json:"tenant_id"`
	Action   string `json:"action"`
	Error    string `json:"error,omitempty"`
}

var _ roles.ActionDispatcher = (*Router)(nil)

// Router dispatches rule actions by name.
type Router struct {
	actions map[string]Action
	bus     core.Publisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewRouter creates a router with no actions registered. bus may be nil.
func NewRouter(bus core.Publisher, logger *zap.Logger) *Router {
	return &Router{
		actions: make(map[string]Action),
		bus:     bus,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle registers action under name, replacing any earlier registration.
func (r *Router) Handle(name string, action Action) {
	r.actions[name] = action
}

// Actions returns the registered action names in sorted order.
func (r *Router) Actions() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch implements roles.ActionDispatcher.
func (r *Router) Dispatch(ctx context.Context, action string, alert *analytics.Alert) error {
	a, ok := r.actions[action]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	err := a.Run(ctx, alert)

	if r.bus != nil {
		d := Delivery{AlertID: alert.ID, TenantID: alert.TenantID, Action: action}
		if err != nil {
			d.Error = err.Error()
		}
		if pubErr := r.bus.Publish(ctx, core.Event{
			Topic:     TopicActionDelivered,
			Source:    "alert",
			Timestamp: r.now(),
			Payload:   d,
		}); pubErr != nil {
			r.logger.Debug("publish delivery event failed", zap.Error(pubErr))
		}
	}
	return err
}

// LogAction writes the alert to the logger. It stands in for notification
// actions when no webhook is configured.
func LogAction(logger *zap.Logger, action string) Action {
	return ActionFunc(func(_ context.Context, a *analytics.Alert) error {
		logger.Info("alert notification",
			zap.String("action", action),
			zap.String("tenant_id", a.TenantID),
			zap.String("rule_id", a.RuleID),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message),
		)
		return nil
	})
}

// WebhookAction posts the alert to the webhook with the action as event type.
func WebhookAction(n *WebhookNotifier, action string) Action {
	return ActionFunc(func(ctx context.Context, a *analytics.Alert) error {
		return n.Notify(ctx, a, action)
	})
}

// NewDefaultRouter wires the built-in actions: notify_* go to the webhook when
// one is configured and to the log otherwise, generate_report writes a report
// to reports.
func NewDefaultRouter(reports ReportWriter, notifier *WebhookNotifier, bus core.Publisher, logger *zap.Logger) *Router {
	r := NewRouter(bus, logger)
	for _, name := range []string{ActionNotifyManagement, ActionNotifySales, ActionNotifyInventory} {
		if notifier.Enabled() {
			r.Handle(name, WebhookAction(notifier, name))
		} else {
			r.Handle(name, LogAction(logger, name))
		}
	}
	if reports != nil {
		r.Handle(ActionGenerateReport, NewReportAction(reports))
	}
	return r
}
