// Package pricing ranks forecast hours by price and summarises forecasts.
package pricing
