package model

import "time"

// SlotDuration is the length of one forecast slot.
const SlotDuration = time.Hour

// ScheduleSlot is one forecast hour selected for charging.
type ScheduleSlot struct {
	Price     float64   `json:"value"`
	StartTime time.Time `json:"start_time"`
}

// End returns the exclusive end of the slot.
func (s ScheduleSlot) End() time.Time { return s.StartTime.Add(SlotDuration) }

// Contains reports whether t lies in [StartTime, StartTime+1h).
func (s ScheduleSlot) Contains(t time.Time) bool {
	return !t.Before(s.StartTime) && t.Before(s.End())
}

// ForecastEntry is a single hourly price point from a forecast feed.
type ForecastEntry struct {
	StartTime time.Time `json:"start_time"`
	Price     float64   `json:"marketprice"`
}
