package store

import "time"

// Config holds the database settings under the "database" config key.
type Config struct {
	Path         string        `mapstructure:"path"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
	CacheSizeKiB int           `mapstructure:"cache_size_kib"`
}

// DefaultConfig returns the settings used when the config file omits them.
func DefaultConfig() Config {
	return Config{
		Path:         "tpminsight.db",
		BusyTimeout:  5 * time.Second,
		CacheSizeKiB: 20000,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = def.BusyTimeout
	}
	if c.CacheSizeKiB <= 0 {
		c.CacheSizeKiB = def.CacheSizeKiB
	}
}

// inMemory reports whether path names a SQLite memory database, which has no
// directory to create.
func inMemory(path string) bool {
	return path == ":memory:" || len(path) >= 5 && path[:5] == "file:"
}
