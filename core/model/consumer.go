package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a consumer derives its charging window.
type Mode string

const (
	// ModeSimple charges a fixed quota of hours before the next 07:00.
	ModeSimple Mode = "simple"
	// ModePrecise takes both the quota and the window length from configuration.
	ModePrecise Mode = "precise"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSimple:
		return ModeSimple, nil
	case ModePrecise:
		return ModePrecise, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// ChargeState is the scheduling phase derived from a ConsumerRecord.
type ChargeState int

const (
	// StateIdle means no active slot and no pending start decision.
	StateIdle ChargeState = iota
	// StateAwaitingStart means a charge decision was made and waits for the device and the slot.
	StateAwaitingStart
	// StateActive means a slot is executing.
	StateActive
)

func (s ChargeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingStart:
		return "awaiting_start"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// ConsumerRecord is the persisted scheduling state of a single controllable load.
//
// ScheduleStart and ScheduleEnd are set and cleared together. PendingRetry is
// only set while no slot is active.
type ConsumerRecord struct {
	Name         string `json:"name"`
	InputSource  string `json:"input_source"`
	OutputSource string `json:"output_source"`
	Mode         Mode   `json:"mode"`
	Enabled      bool   `json:"enabled"`

	HoursToCharge  int        `json:"current_cycle_hours_to_charge"`
	WindowHours    int        `json:"current_cycle_charging_time_window_hours"`
	WindowDeadline *time.Time `json:"current_cycle_charging_time_window_date,omitempty"`

	ScheduleStart *time.Time `json:"current_schedule_start,omitempty"`
	ScheduleEnd   *time.Time `json:"current_schedule_end,omitempty"`

	PendingRetry      bool `json:"start_scheduled_charging"`
	SchedulingEnabled bool `json:"charging_schedules_enabled"`
}

// State derives the scheduling phase from the legacy fields.
func (r ConsumerRecord) State() ChargeState {
	switch {
	case r.ScheduleStart != nil:
		return StateActive
	case r.PendingRetry:
		return StateAwaitingStart
	default:
		return StateIdle
	}
}

// Validate reports a broken slot/pending combination.
func (r ConsumerRecord) Validate() error {
	if (r.ScheduleStart == nil) != (r.ScheduleEnd == nil) {
		return fmt.Errorf("%w: consumer %s has a half-set schedule slot", ErrInvariantViolation, r.Name)
	}
	if r.PendingRetry && r.ScheduleStart != nil {
		return fmt.Errorf("%w: consumer %s is pending while a slot is active", ErrInvariantViolation, r.Name)
	}
	return nil
}

// ActivateSlot marks slot as the executing slot and clears the pending flag.
func (r *ConsumerRecord) ActivateSlot(slot ScheduleSlot) {
	start := slot.StartTime
	end := slot.End()
	r.ScheduleStart = &start
	r.ScheduleEnd = &end
	r.PendingRetry = false
}

// ClearSlot forgets the executing slot.
func (r *ConsumerRecord) ClearSlot() {
	r.ScheduleStart = nil
	r.ScheduleEnd = nil
}

// Clone returns a deep copy so callers can mutate it without aliasing stored pointers.
func (r ConsumerRecord) Clone() ConsumerRecord {
	out := r
	out.WindowDeadline = cloneTime(r.WindowDeadline)
	out.ScheduleStart = cloneTime(r.ScheduleStart)
	out.ScheduleEnd = cloneTime(r.ScheduleEnd)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
