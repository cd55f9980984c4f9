package consumer

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

const (
	// SimpleHoursToCharge is the fixed quota of simple mode.
	SimpleHoursToCharge = 4
	// SimpleDeadlineHour is the local hour at which the simple window closes.
	SimpleDeadlineHour = 7
)

// NextTimeWindow returns the deadline of the next charging window.
//
// Simple mode ends at the next 07:00 strictly after now, in now's location.
// Precise mode ends windowHours after now and has no deadline when
// windowHours is zero.
func NextTimeWindow(mode model.Mode, windowHours int, now time.Time) *time.Time {
	if mode == model.ModeSimple {
		d := time.Date(now.Year(), now.Month(), now.Day(), SimpleDeadlineHour, 0, 0, 0, now.Location())
		if !d.After(now) {
			d = d.AddDate(0, 0, 1)
		}
		return &d
	}
	if windowHours <= 0 {
		return nil
	}
	d := now.Add(time.Duration(windowHours) * time.Hour)
	return &d
}

// TimeWindowHours converts a deadline into whole hours from now, truncating.
func TimeWindowHours(deadline *time.Time, now time.Time) int {
	if deadline == nil {
		return 0
	}
	return int(deadline.Sub(now) / time.Hour)
}

// NewRecord builds the initial scheduling record for cfg. It does not
// validate cfg; unknown modes are treated as precise.
func NewRecord(cfg Config, now time.Time) model.ConsumerRecord {
	mode, err := model.ParseMode(cfg.Mode)
	if err != nil {
		mode = model.ModePrecise
	}
	rec := model.ConsumerRecord{
		Name:              cfg.Name,
		InputSource:       cfg.InputSource,
		OutputSource:      cfg.OutputSource,
		Mode:              mode,
		Enabled:           true,
		SchedulingEnabled: true,
	}
	applyWindow(&rec, cfg.HoursToCharge, cfg.WindowHours, now)
	return rec
}

func applyWindow(rec *model.ConsumerRecord, hoursToCharge, windowHours int, now time.Time) {
	deadline := NextTimeWindow(rec.Mode, windowHours, now)
	rec.WindowDeadline = deadline
	if rec.Mode == model.ModeSimple {
		rec.HoursToCharge = SimpleHoursToCharge
		rec.WindowHours = TimeWindowHours(deadline, now)
		return
	}
	rec.HoursToCharge = hoursToCharge
	rec.WindowHours = windowHours
}

// Build validates every configuration and returns one record per consumer.
// Duplicate names are rejected.
func Build(cfgs []Config, now time.Time) ([]model.ConsumerRecord, error) {
	seen := make(map[string]struct{}, len(cfgs))
	out := make([]model.ConsumerRecord, 0, len(cfgs))
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[c.Name]; ok {
			return nil, &ConfigError{Consumer: c.Name, Field: "name", Reason: "is not unique"}
		}
		seen[c.Name] = struct{}{}
		out = append(out, NewRecord(c, now))
	}
	return out, nil
}

// Renew opens a new window for an idle consumer whose deadline has passed.
// It reports whether the record changed.
func Renew(rec model.ConsumerRecord, now time.Time) (model.ConsumerRecord, bool) {
	if rec.WindowDeadline == nil || !now.After(*rec.WindowDeadline) {
		return rec, false
	}
	if rec.State() != model.StateIdle {
		return rec, false
	}
	out := rec.Clone()
	windowHours := rec.WindowHours
	if rec.Mode == model.ModeSimple {
		windowHours = 0
	}
	applyWindow(&out, rec.HoursToCharge, windowHours, now)
	return out, true
}
