package scheduler

import (
	"fmt"
	"time"
)

const (
	// DefaultPollIntervalSeconds is the loop period used when none is configured.
	DefaultPollIntervalSeconds = 10
	// MinPollIntervalSeconds is the shortest accepted loop period.
	MinPollIntervalSeconds = 10
	// MaxWorkers bounds the number of consumers processed concurrently.
	MaxWorkers = 64
)

// Config defines the scheduling loop parameters.
type Config struct {
	PollIntervalSeconds int `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	// Workers is the number of consumers processed in parallel within a tick.
	Workers int `json:"workers" yaml:"workers"`
	// RenewExpiredWindows opens a new charging window for idle consumers
	// whose deadline has passed.
	RenewExpiredWindows bool `json:"renew_expired_windows" yaml:"renew_expired_windows"`
}

// SetDefaults fills unset values and clamps the poll interval to its minimum.
func (c *Config) SetDefaults() {
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.PollIntervalSeconds < MinPollIntervalSeconds {
		c.PollIntervalSeconds = MinPollIntervalSeconds
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

func (c Config) Validate() error {
	if c.Workers > MaxWorkers {
		return fmt.Errorf("scheduler.workers must not exceed %d", MaxWorkers)
	}
	return nil
}

// Interval returns the loop period, never shorter than the minimum.
func (c Config) Interval() time.Duration {
	s := c.PollIntervalSeconds
	if s < MinPollIntervalSeconds {
		s = MinPollIntervalSeconds
	}
	return time.Duration(s) * time.Second
}
