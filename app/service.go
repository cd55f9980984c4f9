package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/smartcharge/api/consumers"
	"github.com/kilianp07/smartcharge/app/plugins"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/consumer"
	"github.com/kilianp07/smartcharge/core/consumerstate"
	"github.com/kilianp07/smartcharge/core/events"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/scheduler"
	"github.com/kilianp07/smartcharge/infra/device"
	"github.com/kilianp07/smartcharge/infra/eventstream"
	"github.com/kilianp07/smartcharge/infra/forecast"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/metrics"
	"github.com/kilianp07/smartcharge/infra/monitoring"
	"github.com/kilianp07/smartcharge/infra/store"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// StateStore keeps consumer records and their schedules.
type StateStore interface {
	scheduler.ConsumerStateStore
	scheduler.ScheduleStore
}

// Service wires the scheduling loop to its stores, feeds, devices and outer
// surfaces.
type Service struct {
	Loop      *scheduler.Loop
	Store     StateStore
	Forecasts *forecast.Registry
	Devices   *device.Router

	cfg     *config.Config
	log     logger.Logger
	bus     *eventbus.Bus[events.Event]
	sink    coremetrics.MetricsSink
	records []model.ConsumerRecord
	kafka   *eventstream.KafkaPublisher
	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	svc := &Service{cfg: cfg, log: logg, bus: eventbus.New[events.Event]()}
	if err := svc.build(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) build() error {
	cfg := s.cfg
	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	s.Store = st
	if c, ok := st.(*store.SQLiteStore); ok {
		s.closers = append(s.closers, c.Close)
	}

	s.Forecasts, err = forecast.FromConfig(cfg.Forecast, logger.New("forecast"))
	if err != nil {
		return err
	}

	all, err := cfg.AllConsumers()
	if err != nil {
		return err
	}
	s.records, err = consumer.Build(all, time.Now())
	if err != nil {
		return err
	}

	s.Devices = device.NewRouter(logger.New("device"))
	connect := plugins.SharedMQTT(cfg.MQTT)
	if err := plugins.RegisterDevices(s.Devices, connect); err != nil {
		return err
	}
	usesMQTT := false
	for _, c := range all {
		if err := s.Devices.Bind(c.Name, c.OutputSource, cfg.Devices[c.Name]); err != nil {
			return err
		}
		usesMQTT = usesMQTT || c.OutputSource == "mqtt"
	}
	if usesMQTT {
		s.closers = append(s.closers, func() error {
			if c, err := connect(); err == nil {
				c.Disconnect()
			}
			return nil
		})
	}

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		s.closers = append(s.closers, func() error { c.Close(); return nil })
	}

	sched, err := scheduler.NewScheduler(s.Forecasts, s.Devices, s.Devices, st, s.sink, s.bus, logger.New("scheduler"))
	if err != nil {
		return err
	}
	s.Loop, err = scheduler.NewLoop(sched, st, st, cfg.Scheduler, s.sink, s.bus, logger.New("loop"))
	if err != nil {
		return err
	}

	if cfg.Events.Kafka.Enabled {
		s.kafka, err = eventstream.NewKafkaPublisher(cfg.Events.Kafka, logger.New("kafka"))
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		s.closers = append(s.closers, s.kafka.Close)
	}
	return nil
}

func openStore(cfg config.StoreConfig) (StateStore, error) {
	if cfg.Backend == "sqlite" {
		return store.NewSQLiteStore(cfg.Path)
	}
	return consumerstate.NewMemoryStore(), nil
}

// Run syncs the configured consumers into the store and runs the loop and
// the servers until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Loop.Sync(ctx, s.records); err != nil {
		return fmt.Errorf("sync consumers: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	g.Go(func() error { return s.Loop.Run(ctx) })
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error { return metrics.StartPromServer(ctx, addr) })
	}
	if addr := s.cfg.API.Addr; addr != "" {
		router := consumers.NewRouter(s.Store, s.Store, s.Loop, s.cfg.API.Token, logger.New("api"))
		g.Go(func() error { return consumers.Serve(ctx, addr, router, logger.New("api")) })
	}
	if s.kafka != nil {
		g.Go(func() error { return s.kafka.Run(ctx, s.bus) })
	}
	s.log.Infof("service started with %d consumers", len(s.records))
	return g.Wait()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return first
}
