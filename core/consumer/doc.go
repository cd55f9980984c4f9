// Package consumer turns static consumer configuration into initial
// scheduling records. Simple consumers charge four hours before the next
// 07:00; precise consumers carry their own quota and window length.
// All functions are pure and take the current time explicitly.
package consumer
