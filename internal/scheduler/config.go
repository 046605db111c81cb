package scheduler

import "time"

// Config holds configuration for the scheduler loops.
type Config struct {
	DailyInterval    time.Duration `mapstructure:"daily_interval"`
	WeeklyInterval   time.Duration `mapstructure:"weekly_interval"`
	RealtimeInterval time.Duration `mapstructure:"realtime_interval"`
	Workers          int           `mapstructure:"workers"`
	TenantTimeout    time.Duration `mapstructure:"tenant_timeout"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
}

// DefaultConfig returns sensible defaults for the scheduler.
func DefaultConfig() Config {
	return Config{
		DailyInterval:    24 * time.Hour,
		WeeklyInterval:   7 * 24 * time.Hour,
		RealtimeInterval: 5 * time.Minute,
		Workers:          4,
		TenantTimeout:    2 * time.Minute,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.DailyInterval <= 0 {
		c.DailyInterval = def.DailyInterval
	}
	if c.WeeklyInterval <= 0 {
		c.WeeklyInterval = def.WeeklyInterval
	}
	if c.RealtimeInterval <= 0 {
		c.RealtimeInterval = def.RealtimeInterval
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.TenantTimeout <= 0 {
		c.TenantTimeout = def.TenantTimeout
	}
}
