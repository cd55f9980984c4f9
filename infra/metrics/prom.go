package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
)

// PromSink records scheduler activity in Prometheus metrics.
type PromSink struct {
	commands    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	slots       *prometheus.GaugeVec
	nextPrice   *prometheus.GaugeVec
	state       *prometheus.GaugeVec
	quota       *prometheus.GaugeVec
	consumers   prometheus.Gauge
	failed      prometheus.Counter
}

// NewPromSink registers scheduler metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcharge_commands_total",
			Help: "Start and stop commands sent to devices",
		}, []string{"consumer", "command", "success"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartcharge_command_latency_seconds",
			Help:    "Time taken by a device to accept a command",
			Buckets: prometheus.DefBuckets,
		}, []string{"consumer", "command"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcharge_transitions_total",
			Help: "Scheduling state transitions",
		}, []string{"consumer", "from", "to", "reason"}),
		slots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_schedule_slots",
			Help: "Number of stored schedule slots",
		}, []string{"consumer"}),
		nextPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_schedule_cheapest_price",
			Help: "Price of the head slot of the stored schedule",
		}, []string{"consumer"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_consumer_state",
			Help: "Scheduling state of a consumer (0 idle, 1 awaiting start, 2 active)",
		}, []string{"consumer"}),
		quota: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_consumer_hours_to_charge",
			Help: "Charging quota of the current cycle",
		}, []string{"consumer"}),
		consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartcharge_tick_consumers",
			Help: "Consumers seen by the last scheduling pass",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartcharge_tick_failed_consumers_total",
			Help: "Consumers that failed during scheduling passes",
		}),
	}
	var err error
	if s.commands, err = register(reg, s.commands); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.slots, err = register(reg, s.slots); err != nil {
		return nil, err
	}
	if s.nextPrice, err = register(reg, s.nextPrice); err != nil {
		return nil, err
	}
	if s.state, err = register(reg, s.state); err != nil {
		return nil, err
	}
	if s.quota, err = register(reg, s.quota); err != nil {
		return nil, err
	}
	if s.consumers, err = register(reg, s.consumers); err != nil {
		return nil, err
	}
	if s.failed, err = register(reg, s.failed); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an already registered collector.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordCommand(res coremetrics.CommandResult) error {
	s.commands.WithLabelValues(res.Consumer, res.Command, strconv.FormatBool(res.Success)).Inc()
	s.latency.WithLabelValues(res.Consumer, res.Command).Observe(res.Latency.Seconds())
	return nil
}

func (s *PromSink) RecordTransition(ev coremetrics.Transition) error {
	s.transitions.WithLabelValues(ev.Consumer, ev.From, ev.To, ev.Reason).Inc()
	return nil
}

func (s *PromSink) RecordSchedule(ev coremetrics.ScheduleUpdate) error {
	s.slots.WithLabelValues(ev.Consumer).Set(float64(ev.Slots))
	if ev.Slots > 0 {
		s.nextPrice.WithLabelValues(ev.Consumer).Set(ev.CheapestPrice)
	} else {
		s.nextPrice.DeleteLabelValues(ev.Consumer)
	}
	return nil
}

func (s *PromSink) RecordTick(ev coremetrics.TickSummary) error {
	s.consumers.Set(float64(ev.Consumers))
	s.failed.Add(float64(ev.Failed))
	return nil
}

func (s *PromSink) RecordConsumerState(ev coremetrics.ConsumerState) error {
	s.state.WithLabelValues(ev.Consumer).Set(float64(stateValue(ev.State)))
	s.quota.WithLabelValues(ev.Consumer).Set(float64(ev.HoursToCharge))
	return nil
}

func stateValue(name string) model.ChargeState {
	switch name {
	case model.StateAwaitingStart.String():
		return model.StateAwaitingStart
	case model.StateActive.String():
		return model.StateActive
	default:
		return model.StateIdle
	}
}
