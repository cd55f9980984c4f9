// Package eventstream streams scheduler events to external systems.
package eventstream
