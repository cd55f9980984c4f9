package metrics

import "time"

// CommandResult represents a start or stop command sent to a device.
type CommandResult struct {
	Consumer     string
	OutputSource string
	Command      string
	Success      bool
	Latency      time.Duration
	Error        string
	Time         time.Time
}

// MetricsSink records scheduler activity for observability purposes.
// Sinks may implement the optional recorder interfaces below; callers check
// for them with a type assertion.
type MetricsSink interface {
	RecordCommand(res CommandResult) error
}

// Transition captures a consumer moving between scheduling states.
type Transition struct {
	Consumer string
	From     string
	To       string
	Status   string
	Reason   string
	Time     time.Time
}

// TransitionRecorder records state transitions.
type TransitionRecorder interface {
	RecordTransition(ev Transition) error
}

// ScheduleUpdate describes a freshly stored slot sequence.
type ScheduleUpdate struct {
	Consumer      string
	Slots         int
	NextStart     time.Time
	CheapestPrice float64
	Time          time.Time
}

// ScheduleRecorder records slot selections.
type ScheduleRecorder interface {
	RecordSchedule(ev ScheduleUpdate) error
}

// TickSummary summarises a scheduling loop pass.
type TickSummary struct {
	Consumers int
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Time      time.Time
}

// TickRecorder records loop passes.
type TickRecorder interface {
	RecordTick(ev TickSummary) error
}

// ConsumerState is a snapshot of a consumer record.
type ConsumerState struct {
	Consumer          string
	State             string
	HoursToCharge     int
	Enabled           bool
	SchedulingEnabled bool
	Time              time.Time
}

// ConsumerStateRecorder records consumer snapshots.
type ConsumerStateRecorder interface {
	RecordConsumerState(ev ConsumerState) error
}

// NopSink implements MetricsSink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCommand(CommandResult) error       { return nil }
func (NopSink) RecordTransition(Transition) error       { return nil }
func (NopSink) RecordSchedule(ScheduleUpdate) error     { return nil }
func (NopSink) RecordTick(TickSummary) error            { return nil }
func (NopSink) RecordConsumerState(ConsumerState) error { return nil }
