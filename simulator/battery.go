package simulator

import (
	"sync"
	"time"
)

// Battery models the car battery behind a wallbox.
type Battery struct {
	CapacityKWh  float64 // total capacity
	Soc          float64 // state of charge [0,1]
	ChargeRateKW float64 // maximum charging power
	mu           sync.Mutex
}

// Charge adds energy at up to powerKW for dt and returns the power actually
// drawn. A full battery draws nothing.
func (b *Battery) Charge(powerKW float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours <= 0 || powerKW <= 0 {
		return 0
	}
	p := powerKW
	if p > b.ChargeRateKW {
		p = b.ChargeRateKW
	}
	avail := (1 - b.Soc) * b.CapacityKWh
	needed := p * hours
	if needed > avail {
		needed = avail
		p = needed / hours
	}
	b.Soc += needed / b.CapacityKWh
	if b.Soc > 1 {
		b.Soc = 1
	}
	return p
}

// Full reports whether the battery is charged.
func (b *Battery) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Soc >= 1
}

// SoC returns the state of charge.
func (b *Battery) SoC() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Soc
}

// Swap replaces the car: a newly plugged car arrives with soc.
func (b *Battery) Swap(soc float64) {
	b.mu.Lock()
	b.Soc = soc
	b.mu.Unlock()
}
