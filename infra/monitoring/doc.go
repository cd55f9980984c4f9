// Package monitoring provides the Sentry backed error monitor.
package monitoring
