package pricing

import (
	"sort"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// SelectCheapest returns the quota cheapest forecast entries starting at or
// before deadline, ordered by price then start time.
//
// An empty result is returned when the forecast is empty, the deadline is the
// zero time or quota is not positive.
func SelectCheapest(forecast []model.ForecastEntry, deadline time.Time, quota int) []model.ScheduleSlot {
	if len(forecast) == 0 || deadline.IsZero() || quota <= 0 {
		return []model.ScheduleSlot{}
	}
	eligible := make([]model.ScheduleSlot, 0, len(forecast))
	for _, f := range forecast {
		if f.StartTime.After(deadline) {
			continue
		}
		eligible = append(eligible, model.ScheduleSlot{Price: f.Price, StartTime: f.StartTime})
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Price != eligible[j].Price {
			return eligible[i].Price < eligible[j].Price
		}
		return eligible[i].StartTime.Before(eligible[j].StartTime)
	})
	if len(eligible) > quota {
		eligible = eligible[:quota]
	}
	return eligible
}

// SelectForRecord ranks the forecast against the record's window and quota.
// A record without a deadline yields no slots.
func SelectForRecord(forecast []model.ForecastEntry, rec model.ConsumerRecord) []model.ScheduleSlot {
	if rec.WindowDeadline == nil {
		return []model.ScheduleSlot{}
	}
	return SelectCheapest(forecast, *rec.WindowDeadline, rec.HoursToCharge)
}
