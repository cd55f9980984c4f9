// Package device routes status reads and start/stop commands to per consumer
// devices. Each supported family (go-e, MQTT) is a factory registered on the
// Router; adding a family does not touch the scheduler.
package device
