package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tickDuration    prometheus.Histogram
	overlapSkipped  *prometheus.CounterVec
	consumerFailure *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, *prometheus.CounterVec, *prometheus.CounterVec) {
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartcharge_tick_duration_seconds",
			Help:    "Duration of a scheduling loop pass",
			Buckets: prometheus.DefBuckets,
		},
	)
	skip := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartcharge_tick_overlap_skipped_total",
			Help: "Consumers skipped because a previous tick still held them",
		},
		[]string{"consumer"},
	)
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartcharge_consumer_step_failures_total",
			Help: "Consumer steps aborted by an error or panic",
		},
		[]string{"consumer"},
	)
	return dur, skip, fail
}

func init() {
	tickDuration, overlapSkipped, consumerFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers loop metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tickDuration, overlapSkipped, consumerFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	tickDuration, overlapSkipped, consumerFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
