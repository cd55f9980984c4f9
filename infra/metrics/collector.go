package metrics

import (
	"context"

	"github.com/kilianp07/smartcharge/core/events"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records transitions and
// schedule updates on sinks that support them. Commands and ticks are
// recorded directly by the scheduler. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev events.Event) {
	switch e := ev.(type) {
	case events.TransitionEvent:
		if r, ok := sink.(coremetrics.TransitionRecorder); ok {
			_ = r.RecordTransition(coremetrics.Transition{
				Consumer: e.Consumer,
				From:     e.FromName,
				To:       e.ToName,
				Status:   e.Status,
				Reason:   e.Reason,
				Time:     e.Time,
			})
		}
	case events.ScheduleEvent:
		if r, ok := sink.(coremetrics.ScheduleRecorder); ok {
			up := coremetrics.ScheduleUpdate{Consumer: e.Consumer, Slots: len(e.Slots), Time: e.Time}
			if len(e.Slots) > 0 {
				up.NextStart = e.Slots[0].StartTime
				up.CheapestPrice = e.Slots[0].Price
			}
			_ = r.RecordSchedule(up)
		}
	}
}
