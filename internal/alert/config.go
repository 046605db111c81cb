package alert

import "time"

// Config holds configuration for alert evaluation and delivery.
type Config struct {
	DefaultCooldown time.Duration `mapstructure:"default_cooldown"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	Webhook         WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds configuration for webhook notification delivery.
type WebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Secret        string            `mapstructure:"secret"` //nolint:gosec // G101: config field name, not a credential
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	RatePerSecond float64           `mapstructure:"rate_per_second"`
	Burst         int               `mapstructure:"burst"`
}

// DefaultConfig returns sensible defaults for the alert module.
func DefaultConfig() Config {
	return Config{
		DefaultCooldown: time.Hour,
		DispatchTimeout: 10 * time.Second,
		Webhook: WebhookConfig{
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			Burst:         10,
		},
	}
}
