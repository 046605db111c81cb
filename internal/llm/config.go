package llm

import "time"

// Config holds the OpenAI-compatible recommendation provider configuration.
type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"` //nolint:gosec // G101: config field name, not a credential
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float32       `mapstructure:"temperature"`
}

// DefaultConfig returns sensible defaults for the provider.
func DefaultConfig() Config {
	return Config{
		Model:   "gpt-4o-mini",
		Timeout: 8 * time.Second,
	}
}
