package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tpminsight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tpminsight")
	}

	// Environment variable support: TPM_SERVER_PORT=9090
	v.SetEnvPrefix("TPM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 100.0)
	v.SetDefault("server.rate_limit_burst", 200)
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/tpminsight.db")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.cache_size_kib", 20000)

	v.SetDefault("scheduler.daily_interval", "24h")
	v.SetDefault("scheduler.weekly_interval", "168h")
	v.SetDefault("scheduler.realtime_interval", "5m")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.tenant_timeout", "2m")
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("insight.time_range_days", 30)
	v.SetDefault("insight.template_timeout", "10s")
	v.SetDefault("insight.max_parallel", 4)
	v.SetDefault("insight.include_recommendations", true)
	v.SetDefault("insight.max_recommendations", 3)
	v.SetDefault("insight.min_points", 7)
	v.SetDefault("insight.forecast_horizon_days", 7)
	v.SetDefault("insight.smoothing_alpha", 0.3)
	v.SetDefault("insight.seasonality_lag", 7)
	v.SetDefault("insight.seasonality_threshold", 0.3)
	v.SetDefault("insight.anomaly_k", 2.0)
	v.SetDefault("insight.stable_slope_ratio", 0.001)
	v.SetDefault("insight.cusum_drift", 0.5)
	v.SetDefault("insight.cusum_threshold", 5.0)
	v.SetDefault("insight.reorder_level", 100.0)
	v.SetDefault("insight.hw_alpha", 0.3)
	v.SetDefault("insight.hw_beta", 0.1)
	v.SetDefault("insight.hw_gamma", 0.3)

	v.SetDefault("alert.default_cooldown", "1h")
	v.SetDefault("alert.dispatch_timeout", "10s")
	v.SetDefault("alert.webhook.url", "")
	v.SetDefault("alert.webhook.timeout", "10s")
	v.SetDefault("alert.webhook.rate_per_second", 5.0)
	v.SetDefault("alert.webhook.burst", 10)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "8s")
	v.SetDefault("llm.temperature", 0.2)
}
