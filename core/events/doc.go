// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - TransitionEvent: a consumer moved between idle, awaiting start and active
//   - CommandEvent: a start or stop command was sent to a device
//   - ScheduleEvent: the cheapest slot selection of a consumer changed
//   - TickEvent: summary of one scheduling loop pass
package events
