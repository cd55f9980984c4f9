package events

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Event is implemented by every event published by the scheduler.
type Event interface {
	// Kind names the event for routing and serialization.
	Kind() string
}

// Command identifies the order sent to a device.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
)

// TransitionEvent is published when a consumer changes scheduling state.
type TransitionEvent struct {
	Consumer string            `json:"consumer"`
	From     model.ChargeState `json:"-"`
	To       model.ChargeState `json:"-"`
	FromName string            `json:"from"`
	ToName   string            `json:"to"`
	Status   string            `json:"device_status"`
	Reason   string            `json:"reason"`
	Time     time.Time         `json:"time"`
}

func (TransitionEvent) Kind() string { return "transition" }

// NewTransition fills the textual state names from the typed states.
func NewTransition(consumer string, from, to model.ChargeState, status model.DeviceStatus, reason string, at time.Time) TransitionEvent {
	return TransitionEvent{
		Consumer: consumer,
		From:     from,
		To:       to,
		FromName: from.String(),
		ToName:   to.String(),
		Status:   status.String(),
		Reason:   reason,
		Time:     at,
	}
}

// CommandEvent is published for every start or stop command, successful or not.
type CommandEvent struct {
	ID           string        `json:"id"`
	Consumer     string        `json:"consumer"`
	OutputSource string        `json:"output_source"`
	Command      Command       `json:"command"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
	Latency      time.Duration `json:"latency_ns"`
	Time         time.Time     `json:"time"`
}

func (CommandEvent) Kind() string { return "command" }

// ScheduleEvent is published when a consumer's slot sequence is stored.
type ScheduleEvent struct {
	Consumer  string               `json:"consumer"`
	Slots     []model.ScheduleSlot `json:"slots"`
	Refreshed bool                 `json:"refreshed"`
	Time      time.Time            `json:"time"`
}

func (ScheduleEvent) Kind() string { return "schedule" }

// TickEvent summarises a scheduling loop pass.
type TickEvent struct {
	Consumers int           `json:"consumers"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
	Time      time.Time     `json:"time"`
}

func (TickEvent) Kind() string { return "tick" }
