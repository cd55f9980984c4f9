// Package scheduler drives the per consumer charging state machine.
//
// A consumer is idle, awaiting start or active, derived from its record.
// Scheduler.Step evaluates one consumer for one tick: it refreshes the stored
// slot sequence when needed, then starts, stops or waits according to the
// device status and the current slot. Loop runs Step for every enabled
// consumer on a fixed interval, never letting one consumer's failure affect
// another.
package scheduler
