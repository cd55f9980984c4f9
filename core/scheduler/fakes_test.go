package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/smartcharge/core/consumerstate"
	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

var errUnavailable = errors.New("unavailable")

type fakeForecast struct {
	feeds map[string][]model.ForecastEntry
}

func (f *fakeForecast) Forecast(_ context.Context, feed string) ([]model.ForecastEntry, error) {
	fc, ok := f.feeds[feed]
	if !ok {
		return nil, errUnavailable
	}
	return fc, nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]model.DeviceStatus
}

func (f *fakeStatus) set(name string, st model.DeviceStatus) {
	f.mu.Lock()
	f.statuses[name] = st
	f.mu.Unlock()
}

func (f *fakeStatus) Status(_ context.Context, name string) (model.DeviceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[name]
	if !ok {
		return model.StatusOther, errUnavailable
	}
	return st, nil
}

type recordingController struct {
	mu      sync.Mutex
	starts  map[string]int
	stops   map[string]int
	err     error
	panicOn string
}

func newController() *recordingController {
	return &recordingController{starts: map[string]int{}, stops: map[string]int{}}
}

func (c *recordingController) Start(_ context.Context, name string) error {
	if name == c.panicOn {
		panic("device exploded")
	}
	c.mu.Lock()
	c.starts[name]++
	c.mu.Unlock()
	return c.err
}

func (c *recordingController) Stop(_ context.Context, name string) error {
	if name == c.panicOn {
		panic("device exploded")
	}
	c.mu.Lock()
	c.stops[name]++
	c.mu.Unlock()
	return c.err
}

func (c *recordingController) counts(name string) (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts[name], c.stops[name]
}

// base is 00:30 so the first hourly entry of hourlyForecast contains it.
var base = time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)

func hourlyForecast() []model.ForecastEntry {
	start := base.Truncate(time.Hour)
	out := make([]model.ForecastEntry, 24)
	for h := 0; h < 24; h++ {
		out[h] = model.ForecastEntry{StartTime: start.Add(time.Duration(h) * time.Hour), Price: 50 + float64(h)}
	}
	return out
}

func newRecord(name, feed string) model.ConsumerRecord {
	deadline := base.Add(24 * time.Hour)
	return model.ConsumerRecord{
		Name:              name,
		InputSource:       feed,
		OutputSource:      "goe",
		Mode:              model.ModePrecise,
		Enabled:           true,
		SchedulingEnabled: true,
		HoursToCharge:     4,
		WindowHours:       24,
		WindowDeadline:    &deadline,
	}
}

type harness struct {
	forecast *fakeForecast
	status   *fakeStatus
	control  *recordingController
	store    *consumerstate.MemoryStore
	bus      *eventbus.Bus[events.Event]
	sched    *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		forecast: &fakeForecast{feeds: map[string][]model.ForecastEntry{"awattar": hourlyForecast(), "empty": {}}},
		status:   &fakeStatus{statuses: map[string]model.DeviceStatus{}},
		control:  newController(),
		store:    consumerstate.NewMemoryStore(),
		bus:      eventbus.NewWithBuffer[events.Event](64),
	}
	s, err := NewScheduler(h.forecast, h.status, h.control, h.store, nil, h.bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	h.sched = s
	return h
}

func (h *harness) storedSlots(t *testing.T, name string) []model.ScheduleSlot {
	t.Helper()
	slots, err := h.store.Schedules(context.Background(), name)
	if err != nil {
		t.Fatalf("schedules: %v", err)
	}
	return slots
}
