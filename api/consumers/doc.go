// Package consumers exposes consumer records and schedules over HTTP and lets
// operators toggle the enabled and scheduling switches.
package consumers
