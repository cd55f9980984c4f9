package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// TickResult summarises one pass of the loop.
type TickResult struct {
	Consumers int
	Processed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Loop runs the scheduler for every enabled consumer on a fixed interval.
// Each consumer is guarded by its own mutex; a consumer still held by a
// previous pass is skipped rather than waited for.
type Loop struct {
	sched     *Scheduler
	store     ConsumerStateStore
	schedules ScheduleStore
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus[events.Event]
	logger    logger.Logger
	interval  time.Duration
	workers   int
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLoop creates a Loop. sink and bus are optional.
func NewLoop(sched *Scheduler, store ConsumerStateStore, schedules ScheduleStore, cfg Config, sink metrics.MetricsSink, bus eventbus.EventBus[events.Event], log logger.Logger) (*Loop, error) {
	if sched == nil || store == nil || schedules == nil || log == nil {
		return nil, fmt.Errorf("scheduler: nil parameter provided to NewLoop")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	sched.SetRenewExpiredWindows(cfg.RenewExpiredWindows)
	return &Loop{
		sched:     sched,
		store:     store,
		schedules: schedules,
		metrics:   sink,
		bus:       bus,
		logger:    log,
		interval:  cfg.Interval(),
		workers:   cfg.Workers,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Interval returns the effective loop period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Run ticks immediately and then on every interval until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.logger.Infof("scheduling loop started, interval %s", l.interval)
	l.Tick(ctx, l.now())
	for {
		select {
		case <-ctx.Done():
			l.logger.Infof("scheduling loop stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx, l.now())
		}
	}
}

// Tick evaluates every enabled consumer once. A failing consumer never
// prevents the others from being processed.
func (l *Loop) Tick(ctx context.Context, now time.Time) TickResult {
	start := time.Now()
	recs, err := l.store.List(ctx)
	if err != nil {
		l.logger.Errorf("list consumers: %v", err)
		return TickResult{}
	}
	res := TickResult{Consumers: len(recs)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(l.workers)
	for _, rec := range recs {
		if !rec.Enabled {
			res.Skipped++
			continue
		}
		name := rec.Name
		g.Go(func() error {
			o := l.process(ctx, name, now)
			mu.Lock()
			switch o {
			case outcomeProcessed:
				res.Processed++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	res.Duration = time.Since(start)
	tickDuration.Observe(res.Duration.Seconds())

	summary := metrics.TickSummary{
		Consumers: res.Consumers,
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		Duration:  res.Duration,
		Time:      now,
	}
	if tr, ok := l.metrics.(metrics.TickRecorder); ok {
		if err := tr.RecordTick(summary); err != nil {
			l.logger.Errorf("metrics error: %v", err)
		}
	}
	if l.bus != nil {
		l.bus.Publish(events.TickEvent{
			Consumers: res.Consumers,
			Processed: res.Processed,
			Skipped:   res.Skipped,
			Failed:    res.Failed,
			Duration:  res.Duration,
			Time:      now,
		})
	}
	l.logger.Debugw("tick complete", map[string]any{
		"consumers": res.Consumers,
		"processed": res.Processed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	})
	return res
}

// process performs the read-modify-write cycle of one consumer.
func (l *Loop) process(ctx context.Context, name string, now time.Time) (out outcome) {
	lock := l.lockFor(name)
	if !lock.TryLock() {
		l.logger.Warnf("consumer %s: previous tick still running, skipping", name)
		overlapSkipped.WithLabelValues(name).Inc()
		return outcomeSkipped
	}
	defer lock.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err := monitoring.CapturePanic(r, map[string]string{"consumer": name, "module": "scheduler"})
			l.logger.Errorf("consumer %s: %v", name, err)
			consumerFailure.WithLabelValues(name).Inc()
			out = outcomeFailed
		}
	}()

	rec, err := l.store.Get(ctx, name)
	if errors.Is(err, model.ErrConsumerNotFound) {
		return outcomeSkipped
	}
	if err != nil {
		l.logger.Errorf("consumer %s: load record: %v", name, err)
		consumerFailure.WithLabelValues(name).Inc()
		return outcomeFailed
	}
	if !rec.Enabled {
		return outcomeSkipped
	}
	next, err := l.sched.Step(ctx, rec, now)
	if err != nil {
		l.logger.Errorf("consumer %s: %v", name, err)
		if !errors.Is(err, model.ErrInvariantViolation) {
			monitoring.CaptureException(err, map[string]string{"consumer": name, "module": "scheduler"})
		}
		consumerFailure.WithLabelValues(name).Inc()
		return outcomeFailed
	}
	if err := l.store.Set(ctx, next); err != nil {
		l.logger.Errorf("consumer %s: save record: %v", name, err)
		consumerFailure.WithLabelValues(name).Inc()
		return outcomeFailed
	}
	l.recordState(next, now)
	return outcomeProcessed
}

func (l *Loop) recordState(rec model.ConsumerRecord, now time.Time) {
	sr, ok := l.metrics.(metrics.ConsumerStateRecorder)
	if !ok {
		return
	}
	err := sr.RecordConsumerState(metrics.ConsumerState{
		Consumer:          rec.Name,
		State:             rec.State().String(),
		HoursToCharge:     rec.HoursToCharge,
		Enabled:           rec.Enabled,
		SchedulingEnabled: rec.SchedulingEnabled,
		Time:              now,
	})
	if err != nil {
		l.logger.Errorf("metrics error: %v", err)
	}
}

func (l *Loop) lockFor(name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	return m
}

// Sync reconciles the store with the configured records. Unknown consumers
// are added, consumers whose configuration changed are reset and consumers
// no longer configured are removed with their slots. Persisted runtime state
// of unchanged consumers is kept. Lock entries are never dropped, so a
// removed consumer that comes back reuses its mutex.
func (l *Loop) Sync(ctx context.Context, records []model.ConsumerRecord) error {
	want := make(map[string]struct{}, len(records))
	for _, rec := range records {
		want[rec.Name] = struct{}{}
		cur, err := l.store.Get(ctx, rec.Name)
		switch {
		case errors.Is(err, model.ErrConsumerNotFound):
			l.logger.Infof("consumer %s registered", rec.Name)
		case err != nil:
			return fmt.Errorf("load consumer %s: %w", rec.Name, err)
		case !configChanged(cur, rec):
			continue
		default:
			l.logger.Infof("consumer %s configuration changed, resetting", rec.Name)
			if err := l.schedules.SetSchedules(ctx, rec.Name, nil); err != nil {
				return fmt.Errorf("reset schedules of %s: %w", rec.Name, err)
			}
		}
		if err := l.store.Set(ctx, rec); err != nil {
			return fmt.Errorf("save consumer %s: %w", rec.Name, err)
		}
	}

	existing, err := l.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list consumers: %w", err)
	}
	for _, rec := range existing {
		if _, ok := want[rec.Name]; ok {
			continue
		}
		if err := l.store.Delete(ctx, rec.Name); err != nil {
			return fmt.Errorf("delete consumer %s: %w", rec.Name, err)
		}
		if err := l.schedules.SetSchedules(ctx, rec.Name, nil); err != nil {
			return fmt.Errorf("delete schedules of %s: %w", rec.Name, err)
		}
		l.logger.Infof("consumer %s removed", rec.Name)
	}
	return nil
}

// configChanged reports whether the configured record differs from the stored
// one in a field that comes from configuration. The window of a simple
// consumer depends on the time it was built and is not compared.
func configChanged(stored, configured model.ConsumerRecord) bool {
	if stored.InputSource != configured.InputSource ||
		stored.OutputSource != configured.OutputSource ||
		stored.Mode != configured.Mode ||
		stored.HoursToCharge != configured.HoursToCharge {
		return true
	}
	return configured.Mode == model.ModePrecise && stored.WindowHours != configured.WindowHours
}

// Update applies fn to the stored record of name while holding the
// consumer's lock, so changes made outside the loop never race a tick.
func (l *Loop) Update(ctx context.Context, name string, fn func(*model.ConsumerRecord) error) (model.ConsumerRecord, error) {
	lock := l.lockFor(name)
	lock.Lock()
	defer lock.Unlock()
	rec, err := l.store.Get(ctx, name)
	if err != nil {
		return model.ConsumerRecord{}, err
	}
	if err := fn(&rec); err != nil {
		return model.ConsumerRecord{}, err
	}
	if err := rec.Validate(); err != nil {
		return model.ConsumerRecord{}, err
	}
	if err := l.store.Set(ctx, rec); err != nil {
		return model.ConsumerRecord{}, fmt.Errorf("save consumer %s: %w", name, err)
	}
	return rec, nil
}
