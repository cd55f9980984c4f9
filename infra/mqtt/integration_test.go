//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/internal/testutil"
)

// A fake wallbox answers commands with an ack and reports its status.
func TestPahoClient_Broker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	broker, cleanup, err := testutil.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto unavailable: %v", err)
	}
	defer cleanup()

	device := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("wallbox"))
	if tok := device.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("device connect: %v", tok.Error())
	}
	defer device.Disconnect(100)
	commands := make(chan string, 1)
	tok := device.Subscribe("smartcharge/wallbox/command", 1, func(c paho.Client, m paho.Message) {
		var cmd struct {
			CommandID string `json:"command_id"`
			Command   string `json:"command"`
		}
		_ = json.Unmarshal(m.Payload(), &cmd)
		ack, _ := json.Marshal(map[string]string{"command_id": cmd.CommandID})
		c.Publish("smartcharge/wallbox/ack", 1, false, ack)
		commands <- cmd.Command
	})
	if tok.Wait() && tok.Error() != nil {
		t.Fatalf("device subscribe: %v", tok.Error())
	}

	cli, err := NewPahoClient(Config{Broker: broker, ClientID: "scheduler", AckTimeoutMS: 5000, QoS: map[string]byte{"command": 1, "ack": 1, "status": 1}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer cli.Disconnect()

	if err := cli.Start(ctx, "wallbox"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := <-commands; got != "start" {
		t.Fatalf("device got %q", got)
	}

	device.Publish("smartcharge/wallbox/status", 1, false, `{"status":"charging"}`).Wait()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, err := cli.Status(ctx, "wallbox"); err == nil && st == model.StatusCharging {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("status never received")
}
