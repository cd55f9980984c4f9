// Package plugins registers the built-in device families on a device router.
package plugins
