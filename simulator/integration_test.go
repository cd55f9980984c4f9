//go:build integration

package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	"github.com/kilianp07/smartcharge/internal/testutil"
)

// The scheduler's MQTT client stops and restarts a simulated wallbox.
func TestWallboxAgainstBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	broker, cleanup, err := testutil.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto unavailable: %v", err)
	}
	defer cleanup()

	sub, disconnect, err := newMQTTClient(broker, "sim")
	if err != nil {
		t.Fatalf("simulator connect: %v", err)
	}
	defer disconnect()
	w := NewWallbox("garage", &Battery{CapacityKWh: 40, Soc: 0.2, ChargeRateKW: 11}, AutoAck{}, 0, 1, logger.NopLogger{})
	_ = w.Command("start")
	go func() { _ = w.Run(ctx, sub, "smartcharge", 100*time.Millisecond) }()

	cli, err := mqtt.NewPahoClient(mqtt.Config{Broker: broker, ClientID: "scheduler", AckTimeoutMS: 5000})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer cli.Disconnect()

	waitStatus(t, ctx, cli, model.StatusCharging)
	if err := cli.Stop(ctx, "garage"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitStatus(t, ctx, cli, model.StatusReady)
	if err := cli.Start(ctx, "garage"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStatus(t, ctx, cli, model.StatusCharging)
}

func waitStatus(t *testing.T, ctx context.Context, cli *mqtt.PahoClient, want model.DeviceStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, err := cli.Status(ctx, "garage"); err == nil && st == want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("status %s never received", want)
}
