package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// InfluxSink writes scheduler activity to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordCommand writes a command as a line protocol point.
func (s *InfluxSink) RecordCommand(res coremetrics.CommandResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charge_command").
		AddTag("consumer", res.Consumer).
		AddTag("output_source", res.OutputSource).
		AddTag("command", res.Command).
		AddTag("success", strconv.FormatBool(res.Success)).
		AddField("latency_ms", round3(res.Latency.Seconds()*1000))
	if res.Error != "" {
		p = p.AddField("error", res.Error)
	}
	p = p.SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordTransition(ev coremetrics.Transition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("state_transition").
		AddTag("consumer", ev.Consumer).
		AddTag("from", ev.From).
		AddTag("to", ev.To).
		AddField("reason", ev.Reason).
		AddField("device_status", ev.Status).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSchedule(ev coremetrics.ScheduleUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_update").
		AddTag("consumer", ev.Consumer).
		AddField("slots", ev.Slots)
	if ev.Slots > 0 {
		p = p.AddField("cheapest_price", round3(ev.CheapestPrice)).
			AddField("next_start", ev.NextStart.UTC().Format(time.RFC3339))
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordTick(ev coremetrics.TickSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("scheduler_tick").
		AddField("consumers", ev.Consumers).
		AddField("processed", ev.Processed).
		AddField("skipped", ev.Skipped).
		AddField("failed", ev.Failed).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordConsumerState(ev coremetrics.ConsumerState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("consumer_state").
		AddTag("consumer", ev.Consumer).
		AddTag("state", ev.State).
		AddField("hours_to_charge", ev.HoursToCharge).
		AddField("enabled", ev.Enabled).
		AddField("scheduling_enabled", ev.SchedulingEnabled).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
