package sqlite

import "time"

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "audit.db"
	defaultRetention   = 30 * 24 * time.Hour
)

// Config holds the SQLite audit module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/audit.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode for concurrent reads. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout" validate:"gte=0"`

	// Retention is how long records are kept. Zero disables the cleanup job.
	Retention *time.Duration `yaml:"retention"`

	// RetentionSchedule is the cron expression of the cleanup job.
	RetentionSchedule string `yaml:"retention_schedule"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.Retention == nil {
		r := defaultRetention
		c.Retention = &r
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) retention() time.Duration {
	if c.Retention == nil {
		return defaultRetention
	}
	return *c.Retention
}

// options converts the config into Open options.
func (c *Config) options() Options {
	return Options{WAL: c.walEnabled(), BusyTimeout: c.BusyTimeout}
}
