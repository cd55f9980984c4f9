package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordCommand(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	res := coremetrics.CommandResult{
		Consumer:     "wallbox",
		OutputSource: "goe",
		Command:      "start",
		Success:      false,
		Latency:      250 * time.Millisecond,
		Error:        "timeout",
		Time:         now,
	}
	if err := sink.RecordCommand(res); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("charge_command").
		AddTag("consumer", "wallbox").
		AddTag("output_source", "goe").
		AddTag("command", "start").
		AddTag("success", "false").
		AddField("latency_ms", 250.0).
		AddField("error", "timeout").
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != lineProtocol(p) {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordTransition(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.Transition{Consumer: "wallbox", From: "idle", To: "awaiting_start", Status: "charging", Reason: "unmanaged_charge", Time: now}
	if err := sink.RecordTransition(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("state_transition").
		AddTag("consumer", "wallbox").
		AddTag("from", "idle").
		AddTag("to", "awaiting_start").
		AddField("reason", "unmanaged_charge").
		AddField("device_status", "charging").
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != lineProtocol(p) {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordSchedule(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	next := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	if err := sink.RecordSchedule(coremetrics.ScheduleUpdate{Consumer: "wallbox", Slots: 4, NextStart: next, CheapestPrice: 12.3456, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("schedule_update").
		AddTag("consumer", "wallbox").
		AddField("slots", 4).
		AddField("cheapest_price", 12.346).
		AddField("next_start", "2024-01-01T03:00:00Z").
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != lineProtocol(p) {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordTick(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.TickSummary{Consumers: 3, Processed: 2, Skipped: 1, Duration: 1500 * time.Microsecond, Time: now}
	if err := sink.RecordTick(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("scheduler_tick").
		AddField("consumers", 3).
		AddField("processed", 2).
		AddField("skipped", 1).
		AddField("failed", 0).
		AddField("duration_ms", 1.5).
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != lineProtocol(p) {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordConsumerState(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.ConsumerState{Consumer: "wallbox", State: "active", HoursToCharge: 4, Enabled: true, SchedulingEnabled: true, Time: now}
	if err := sink.RecordConsumerState(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("consumer_state").
		AddTag("consumer", "wallbox").
		AddTag("state", "active").
		AddField("hours_to_charge", 4).
		AddField("enabled", true).
		AddField("scheduling_enabled", true).
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != lineProtocol(p) {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
