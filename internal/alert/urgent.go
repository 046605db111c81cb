package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/core"
	"go.uber.org/zap"
)

// Digest summarizes the alerts one real-time check raised for a tenant.
type Digest struct {
	TenantID    string             `json:"tenant_id"`
	Count       int                `json:"count"`
	Highest     analytics.Severity `json:"highest_severity"`
	RuleIDs     []string           `json:"rule_ids"`
	Alerts      []analytics.Alert  `json:"alerts"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// NewDigest builds a digest of alerts.
func NewDigest(tenantID string, alerts []analytics.Alert, at time.Time) *Digest {
	d := &Digest{
		TenantID:    tenantID,
		Count:       len(alerts),
		Alerts:      alerts,
		GeneratedAt: at.UTC(),
	}
	for i := range alerts {
		d.RuleIDs = append(d.RuleIDs, alerts[i].RuleID)
		if severityRank(alerts[i].Severity) > severityRank(d.Highest) {
			d.Highest = alerts[i].Severity
		}
	}
	return d
}

func severityRank(s analytics.Severity) int {
	switch s {
	case analytics.SeverityHigh:
		return 3
	case analytics.SeverityMedium:
		return 2
	case analytics.SeverityLow:
		return 1
	default:
		return 0
	}
}

// UrgentNotifier fans a digest of real-time alerts out to the event bus and,
// when configured, the webhook.
type UrgentNotifier struct {
	bus     core.Publisher
	webhook *WebhookNotifier
	logger  *zap.Logger
	now     func() time.Time
}

// NewUrgentNotifier creates an urgent notifier. bus and webhook may be nil.
func NewUrgentNotifier(bus core.Publisher, webhook *WebhookNotifier, logger *zap.Logger) *UrgentNotifier {
	return &UrgentNotifier{bus: bus, webhook: webhook, logger: logger, now: time.Now}
}

// NotifyUrgent sends one digest for alerts. It is a no-op for an empty slice.
func (u *UrgentNotifier) NotifyUrgent(ctx context.Context, tenantID string, alerts []analytics.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	d := NewDigest(tenantID, alerts, u.now())

	if u.bus != nil {
		if err := u.bus.Publish(ctx, core.Event{
			Topic:     TopicUrgentDigest,
			Source:    "alert",
			Timestamp: d.GeneratedAt,
			Payload:   d,
		}); err != nil {
			return fmt.Errorf("publish urgent digest: %w", err)
		}
	}

	if u.webhook.Enabled() {
		if err := u.webhook.NotifyDigest(ctx, d); err != nil {
			return fmt.Errorf("deliver urgent digest: %w", err)
		}
	}

	u.logger.Info("urgent alert digest sent",
		zap.String("tenant_id", tenantID),
		zap.Int("alerts", d.Count),
		zap.String("highest_severity", string(d.Highest)),
	)
	return nil
}
