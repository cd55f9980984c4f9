// Package metrics defines the sink interfaces used to observe the scheduler.
// Sinks like PromSink and InfluxSink record commands, state transitions and
// loop passes and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when multiple sinks are configured.
package metrics
