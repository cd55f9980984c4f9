// Package store holds persistent backends for consumer records and schedules.
package store
