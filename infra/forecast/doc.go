// Package forecast provides hourly electricity price feeds. Feeds are
// configured by id and built from provider modules (aWATTar, RTE wholesale
// market, local file). Registry implements the scheduler's ForecastSource
// with a per feed TTL cache.
package forecast
