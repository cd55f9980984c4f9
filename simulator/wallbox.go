package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

var errAckTimeout = errors.New("ack publish timeout")

// Subscriber is the subset of the paho client a wallbox listens with.
type Subscriber interface {
	Publisher
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Wallbox simulates a charger with a car that comes and goes. A freshly
// plugged car starts charging on its own, like most wallboxes do, and the
// charger reports ready once it is stopped or the battery is full.
type Wallbox struct {
	Name     string
	Battery  *Battery
	Strategy AckStrategy
	PlugRate float64

	mu       sync.Mutex
	plugged  bool
	charging bool
	rng      *rand.Rand
	logger   logger.Logger
}

func NewWallbox(name string, b *Battery, strat AckStrategy, plugRate float64, seed int64, log logger.Logger) *Wallbox {
	return &Wallbox{
		Name:     name,
		Battery:  b,
		Strategy: strat,
		PlugRate: plugRate,
		plugged:  true,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   log,
	}
}

// Status reports what the wallbox would publish.
func (w *Wallbox) Status() model.DeviceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status()
}

func (w *Wallbox) status() model.DeviceStatus {
	switch {
	case w.charging:
		return model.StatusCharging
	case w.plugged:
		return model.StatusReady
	default:
		return model.StatusOther
	}
}

// Command applies a start or stop order.
func (w *Wallbox) Command(cmd string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch cmd {
	case "start":
		w.charging = w.plugged && !w.Battery.Full()
	case "stop":
		w.charging = false
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// Advance moves the simulation forward by dt: cars may arrive or leave and a
// charging battery fills up.
func (w *Wallbox) Advance(dt time.Duration) model.DeviceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.PlugRate > 0 && w.rng.Float64() < w.PlugRate {
		w.plugged = !w.plugged
		if w.plugged {
			w.Battery.Swap(0.1 + 0.5*w.rng.Float64())
			w.charging = true
		} else {
			w.charging = false
		}
	}
	if w.charging {
		w.Battery.Charge(w.Battery.ChargeRateKW, dt)
		if w.Battery.Full() {
			w.charging = false
		}
	}
	return w.status()
}

// Run listens for commands under prefix and publishes the status every
// interval until ctx is done.
func (w *Wallbox) Run(ctx context.Context, cli Subscriber, prefix string, interval time.Duration) error {
	base := fmt.Sprintf("%s/%s", prefix, w.Name)
	if token := cli.Subscribe(base+"/command", 1, w.onCommand(ctx, cli, base)); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	w.publishStatus(cli, base, w.Status())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.publishStatus(cli, base, w.Advance(interval))
		}
	}
}

func (w *Wallbox) onCommand(ctx context.Context, cli Subscriber, base string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		var m struct {
			CommandID string `json:"command_id"`
			Command   string `json:"command"`
		}
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			w.logger.Errorf("%s: decode command: %v", w.Name, err)
			return
		}
		if err := w.Command(m.Command); err != nil {
			w.logger.Warnf("%s: %v", w.Name, err)
			return
		}
		w.logger.Infof("%s: %s (soc %.0f%%)", w.Name, m.Command, 100*w.Battery.SoC())
		w.publishStatus(cli, base, w.Status())
		go func() {
			if err := w.Strategy.Ack(ctx, cli, base+"/ack", m.CommandID); err != nil && ctx.Err() == nil {
				w.logger.Errorf("%s: ack %s: %v", w.Name, m.CommandID, err)
			}
		}()
	}
}

func (w *Wallbox) publishStatus(pub Publisher, base string, st model.DeviceStatus) {
	payload, _ := json.Marshal(map[string]any{"status": st.String(), "soc": w.Battery.SoC()})
	token := pub.Publish(base+"/status", 1, true, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		w.logger.Errorf("%s: publish status failed: %v", w.Name, token.Error())
	}
}
