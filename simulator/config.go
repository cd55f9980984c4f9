package simulator

import (
	"errors"
	"time"
)

// Config holds the simulator settings.
type Config struct {
	Broker      string
	TopicPrefix string
	// Names lists the simulated wallboxes; Count generates wallbox01.. when empty.
	Names []string
	Count int

	Interval   time.Duration
	AckLatency time.Duration
	DropRate   float64
	// PlugRate is the probability per interval that a car is plugged in or
	// unplugged.
	PlugRate float64

	CapacityKWh  float64
	ChargeRateKW float64
	InitialSoC   float64
	Seed         int64
}

func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "smartcharge"
	}
	if len(c.Names) == 0 && c.Count <= 0 {
		c.Count = 1
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.CapacityKWh <= 0 {
		c.CapacityKWh = 40
	}
	if c.ChargeRateKW <= 0 {
		c.ChargeRateKW = 11
	}
	if c.InitialSoC <= 0 {
		c.InitialSoC = 0.3
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("simulator: broker is required")
	}
	if c.DropRate < 0 || c.DropRate > 1 || c.PlugRate < 0 || c.PlugRate > 1 {
		return errors.New("simulator: rates must be within [0,1]")
	}
	if c.InitialSoC > 1 {
		return errors.New("simulator: initial soc must be within [0,1]")
	}
	return nil
}
