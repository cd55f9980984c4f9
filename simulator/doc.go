// Package simulator runs simulated wallboxes that speak the MQTT command,
// status and ack protocol of the mqtt device family. It is used for manual
// end to end runs against a real broker.
package simulator
