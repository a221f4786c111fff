package scheduler

import "time"

// Config controls maintenance intervals and retention windows.
type Config struct {
	// RunInterval is the pause between maintenance sweeps.
	RunInterval time.Duration
	// AssignmentTTL is how long a matching offer stays open before the
	// sweep marks it expired.
	AssignmentTTL time.Duration
	// CounterRetention is how long daily usage counter rows are kept.
	CounterRetention time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      time.Minute,
		AssignmentTTL:    24 * time.Hour,
		CounterRetention: 90 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.AssignmentTTL <= 0 {
		c.AssignmentTTL = defaults.AssignmentTTL
	}
	if c.CounterRetention <= 0 {
		c.CounterRetention = defaults.CounterRetention
	}
	return c
}
