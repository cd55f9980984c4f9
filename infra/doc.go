// Package infra groups the adapters behind the scheduler's interfaces: device
// families (goe, mqtt), price feeds, persistent stores, metrics sinks, event
// streaming and error monitoring. None of them is imported by core.
package infra
