package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HerbHall/tpminsight/internal/version"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrWebhookDisabled is returned when no webhook URL is configured.
var ErrWebhookDisabled = errors.New("webhook url not configured")

// webhookPayload is the JSON body sent to webhook endpoints.
type webhookPayload struct {
	EventType string           `json:"event_type"`
	Alert     *analytics.Alert `json:"alert,omitempty"`
	Digest    *Digest          `json:"digest,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// WebhookNotifier delivers notifications via HTTP POST to a configured URL.
// Deliveries are rate limited and pass through a circuit breaker so a failing
// endpoint is not hammered by every alert.
type WebhookNotifier struct {
	client  *http.Client
	cfg     WebhookConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewWebhookNotifier creates a new webhook notifier with the given config.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	def := DefaultConfig().Webhook
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	return &WebhookNotifier{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "alert-webhook",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		now: time.Now,
	}
}

// Enabled reports whether a destination URL is configured.
func (w *WebhookNotifier) Enabled() bool {
	return w != nil && w.cfg.URL != ""
}

// Notify sends an alert to the configured webhook URL.
func (w *WebhookNotifier) Notify(ctx context.Context, alert *analytics.Alert, eventType string) error {
	return w.send(ctx, webhookPayload{EventType: eventType, Alert: alert})
}

// NotifyDigest sends an urgent digest to the configured webhook URL.
func (w *WebhookNotifier) NotifyDigest(ctx context.Context, d *Digest) error {
	return w.send(ctx, webhookPayload{EventType: "urgent_digest", Digest: d})
}

// State returns the circuit breaker state.
func (w *WebhookNotifier) State() gobreaker.State {
	return w.breaker.State()
}

func (w *WebhookNotifier) send(ctx context.Context, payload webhookPayload) error {
	if !w.Enabled() {
		return ErrWebhookDisabled
	}
	payload.Timestamp = w.now().UTC()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	_, err = w.breaker.Execute(func() (interface{}, error) {
		return nil, w.post(ctx, body)
	})
	return err
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TPMInsight-Webhook/"+version.Short())

	// Add HMAC-SHA256 signature if secret is configured.
	if w.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.cfg.Secret))
		mac.Write(body)
		req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook POST %s: %w", w.cfg.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook POST %s: status %d", w.cfg.URL, resp.StatusCode)
	}
	return nil
}
