package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// Config selects the Kafka cluster and topic scheduler events are streamed to.
type Config struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Brokers   []string `json:"brokers" yaml:"brokers"`
	Topic     string   `json:"topic" yaml:"topic"`
	BatchSize int      `json:"batch_size" yaml:"batch_size"`
	// Kinds filters the streamed event kinds; empty streams transitions,
	// commands and schedules.
	Kinds []string `json:"kinds" yaml:"kinds"`
}

func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "smartcharge.events"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if len(c.Kinds) == 0 {
		c.Kinds = []string{"transition", "command", "schedule"}
	}
}

func (c Config) Validate() error {
	if c.Enabled && len(c.Brokers) == 0 {
		return errors.New("events.kafka: at least one broker is required")
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// envelope is the JSON value of every streamed message.
type envelope struct {
	Kind string       `json:"kind"`
	Time time.Time    `json:"time"`
	Data events.Event `json:"data"`
}

// KafkaPublisher forwards scheduler events from the bus to a Kafka topic,
// keyed by consumer so each consumer's events stay ordered in one partition.
type KafkaPublisher struct {
	writer messageWriter
	kinds  map[string]struct{}
	logger logger.Logger
}

func NewKafkaPublisher(cfg Config, log logger.Logger) (*KafkaPublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(w, cfg.Kinds, log), nil
}

func newPublisher(w messageWriter, kinds []string, log logger.Logger) *KafkaPublisher {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &KafkaPublisher{writer: w, kinds: set, logger: log}
}

// Run subscribes to bus and publishes matching events until ctx is done.
func (p *KafkaPublisher) Run(ctx context.Context, bus eventbus.EventBus[events.Event]) error {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.Publish(ctx, ev); err != nil {
				p.logger.Errorf("kafka publish %s: %v", ev.Kind(), err)
			}
		}
	}
}

// Publish writes a single event. Events of unselected kinds are ignored.
func (p *KafkaPublisher) Publish(ctx context.Context, ev events.Event) error {
	if _, ok := p.kinds[ev.Kind()]; !ok {
		return nil
	}
	val, err := json.Marshal(envelope{Kind: ev.Kind(), Time: eventTime(ev), Data: ev})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventKey(ev)),
		Value: val,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind())},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

func eventKey(ev events.Event) string {
	switch e := ev.(type) {
	case events.TransitionEvent:
		return e.Consumer
	case events.CommandEvent:
		return e.Consumer
	case events.ScheduleEvent:
		return e.Consumer
	default:
		return ev.Kind()
	}
}

func eventTime(ev events.Event) time.Time {
	switch e := ev.(type) {
	case events.TransitionEvent:
		return e.Time
	case events.CommandEvent:
		return e.Time
	case events.ScheduleEvent:
		return e.Time
	case events.TickEvent:
		return e.Time
	default:
		return time.Time{}
	}
}
