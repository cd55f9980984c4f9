package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/consumer"
	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/pricing"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// Transition reasons carried by events.
const (
	ReasonSlotStarted     = "slot_started"
	ReasonNotReady        = "device_not_ready"
	ReasonUnmanagedCharge = "unmanaged_charge"
	ReasonSlotExpired     = "slot_expired"
	ReasonDeviceLost      = "device_lost"
	ReasonWindowRenewed   = "window_renewed"
)

// Scheduler evaluates the charging state machine of a single consumer.
type Scheduler struct {
	forecasts ForecastSource
	status    DeviceStatusSource
	control   ChargeController
	schedules ScheduleStore
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus[events.Event]
	logger    logger.Logger
	renew     bool
}

// NewScheduler creates a Scheduler. sink and bus are optional.
func NewScheduler(forecasts ForecastSource, status DeviceStatusSource, control ChargeController, schedules ScheduleStore, sink metrics.MetricsSink, bus eventbus.EventBus[events.Event], log logger.Logger) (*Scheduler, error) {
	if forecasts == nil || status == nil || control == nil || schedules == nil || log == nil {
		return nil, fmt.Errorf("scheduler: nil parameter provided to NewScheduler")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Scheduler{
		forecasts: forecasts,
		status:    status,
		control:   control,
		schedules: schedules,
		metrics:   sink,
		bus:       bus,
		logger:    log,
	}, nil
}

// SetRenewExpiredWindows toggles the opening of a new window once an idle
// consumer's deadline has passed.
func (s *Scheduler) SetRenewExpiredWindows(on bool) { s.renew = on }

// Step runs one tick of the state machine for rec and returns the record to
// persist. A returned error means rec must be left untouched; command
// failures are not errors.
func (s *Scheduler) Step(ctx context.Context, rec model.ConsumerRecord, now time.Time) (model.ConsumerRecord, error) {
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	if !rec.Enabled || !rec.SchedulingEnabled {
		return rec, nil
	}
	next := rec.Clone()
	if s.renew {
		if renewed, ok := consumer.Renew(next, now); ok {
			s.logger.Infof("consumer %s: window renewed until %s", next.Name, renewed.WindowDeadline.Format(time.RFC3339))
			next = renewed
			s.publishTransition(next, model.StateIdle, model.StateIdle, model.StatusOther, ReasonWindowRenewed, now)
		}
	}

	status := s.deviceStatus(ctx, next.Name)
	slots, err := s.refresh(ctx, next, status, now)
	if err != nil {
		return rec, err
	}
	if len(slots) == 0 {
		s.logger.Debugf("consumer %s: no schedule slots", next.Name)
		return next, nil
	}

	from := next.State()
	var reason string
	switch from {
	case model.StateAwaitingStart:
		reason, err = s.tryStart(ctx, &next, status, slots, now)
	case model.StateIdle:
		if status == model.StatusCharging {
			s.command(ctx, next, events.CommandStop, now)
			next.PendingRetry = true
			reason = ReasonUnmanagedCharge
		}
	case model.StateActive:
		reason = s.continueSlot(ctx, &next, status, now)
	}
	if err != nil {
		return rec, err
	}
	if reason != "" {
		s.publishTransition(next, from, next.State(), status, reason, now)
	}
	return next, nil
}

func (s *Scheduler) deviceStatus(ctx context.Context, name string) model.DeviceStatus {
	st, err := s.status.Status(ctx, name)
	if err != nil {
		s.logger.Debugf("consumer %s: status unavailable: %v", name, err)
		return model.StatusOther
	}
	return st
}

// refresh returns the slot sequence to act on, recomputing it when the
// device is not charging under a pending decision or nothing is stored.
func (s *Scheduler) refresh(ctx context.Context, rec model.ConsumerRecord, status model.DeviceStatus, now time.Time) ([]model.ScheduleSlot, error) {
	stored, err := s.schedules.Schedules(ctx, rec.Name)
	if err != nil {
		return nil, fmt.Errorf("load schedules for %s: %w", rec.Name, err)
	}
	if !(status != model.StatusCharging && !rec.PendingRetry) && len(stored) > 0 {
		return stored, nil
	}
	forecast, err := s.forecasts.Forecast(ctx, rec.InputSource)
	if err != nil {
		s.logger.Debugf("consumer %s: forecast %s unavailable: %v", rec.Name, rec.InputSource, err)
		forecast = nil
	}
	slots := pricing.SelectForRecord(forecast, rec)
	if err := s.schedules.SetSchedules(ctx, rec.Name, slots); err != nil {
		return nil, fmt.Errorf("store schedules for %s: %w", rec.Name, err)
	}
	if !sameSlots(stored, slots) {
		s.logger.Debugw("schedule refreshed", map[string]any{"consumer": rec.Name, "slots": len(slots)})
		if s.bus != nil {
			s.bus.Publish(events.ScheduleEvent{Consumer: rec.Name, Slots: slots, Refreshed: true, Time: now})
		}
	}
	return slots, nil
}

func (s *Scheduler) tryStart(ctx context.Context, rec *model.ConsumerRecord, status model.DeviceStatus, slots []model.ScheduleSlot, now time.Time) (string, error) {
	if status != model.StatusReady {
		rec.PendingRetry = false
		return ReasonNotReady, nil
	}
	head := slots[0]
	if !head.Contains(now) {
		return "", nil
	}
	if err := s.schedules.SetSchedules(ctx, rec.Name, slots[1:]); err != nil {
		return "", fmt.Errorf("pop schedule slot for %s: %w", rec.Name, err)
	}
	rec.ActivateSlot(head)
	s.command(ctx, *rec, events.CommandStart, now)
	return ReasonSlotStarted, nil
}

// continueSlot handles an active slot. A lost device wins over expiry so the
// slot is abandoned rather than retried.
func (s *Scheduler) continueSlot(ctx context.Context, rec *model.ConsumerRecord, status model.DeviceStatus, now time.Time) string {
	if status != model.StatusCharging && status != model.StatusReady {
		s.command(ctx, *rec, events.CommandStop, now)
		rec.ClearSlot()
		return ReasonDeviceLost
	}
	if now.After(*rec.ScheduleEnd) {
		s.command(ctx, *rec, events.CommandStop, now)
		rec.ClearSlot()
		rec.PendingRetry = true
		return ReasonSlotExpired
	}
	return ""
}

// command sends cmd to the device. Failures are reported but never change
// the outcome of the step.
func (s *Scheduler) command(ctx context.Context, rec model.ConsumerRecord, cmd events.Command, now time.Time) {
	start := time.Now()
	var err error
	switch cmd {
	case events.CommandStart:
		err = s.control.Start(ctx, rec.Name)
	case events.CommandStop:
		err = s.control.Stop(ctx, rec.Name)
	}
	latency := time.Since(start)

	res := metrics.CommandResult{
		Consumer:     rec.Name,
		OutputSource: rec.OutputSource,
		Command:      string(cmd),
		Success:      err == nil,
		Latency:      latency,
		Time:         now,
	}
	ev := events.CommandEvent{
		ID:           uuid.NewString(),
		Consumer:     rec.Name,
		OutputSource: rec.OutputSource,
		Command:      cmd,
		Err:          err,
		Latency:      latency,
		Time:         now,
	}
	if err != nil {
		res.Error = err.Error()
		ev.Error = err.Error()
		s.logger.Errorf("consumer %s: %s command failed: %v", rec.Name, cmd, err)
		monitoring.CaptureException(err, map[string]string{"consumer": rec.Name, "command": string(cmd), "module": "scheduler"})
	} else {
		s.logger.Infof("consumer %s: %s command sent to %s", rec.Name, cmd, rec.OutputSource)
	}
	if mErr := s.metrics.RecordCommand(res); mErr != nil {
		s.logger.Errorf("metrics error: %v", mErr)
	}
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func (s *Scheduler) publishTransition(rec model.ConsumerRecord, from, to model.ChargeState, status model.DeviceStatus, reason string, now time.Time) {
	s.logger.Infof("consumer %s: %s -> %s (%s)", rec.Name, from, to, reason)
	if s.bus != nil {
		s.bus.Publish(events.NewTransition(rec.Name, from, to, status, reason, now))
	}
}

func sameSlots(a, b []model.ScheduleSlot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Price != b[i].Price || !a[i].StartTime.Equal(b[i].StartTime) {
			return false
		}
	}
	return true
}
