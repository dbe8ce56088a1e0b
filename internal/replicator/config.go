package replicator

import (
	"time"
)

// Config controls sweep cadence and push behavior.
type Config struct {
	// SweepInterval is the recurring background drain cadence.
	SweepInterval time.Duration
	// PushTimeout bounds a single push to the cloud ledger.
	PushTimeout time.Duration
	// ProbeTimeout bounds the reachability check that gates a sweep.
	ProbeTimeout time.Duration
	// BatchSize is the number of queue entries claimed per fetch.
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		SweepInterval: 30 * time.Second,
		PushTimeout:   10 * time.Second,
		ProbeTimeout:  3 * time.Second,
		BatchSize:     100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = defaults.PushTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaults.ProbeTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
