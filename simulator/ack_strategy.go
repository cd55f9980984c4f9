package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the subset of the paho client used by the simulator.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// AckStrategy defines how a wallbox acknowledges commands.
type AckStrategy interface {
	Ack(ctx context.Context, pub Publisher, topic, commandID string) error
}

// AutoAck sends an ACK after an optional fixed delay.
type AutoAck struct {
	Delay time.Duration
}

// Ack implements AckStrategy.
func (a AutoAck) Ack(ctx context.Context, pub Publisher, topic, commandID string) error {
	if !wait(ctx, a.Delay) {
		return ctx.Err()
	}
	return publishAck(pub, topic, commandID)
}

// RandomAck drops acknowledgments with the configured probability and
// waits for the specified delay before sending.
type RandomAck struct {
	Delay    time.Duration
	DropRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomAck(delay time.Duration, dropRate float64, seed int64) *RandomAck {
	return &RandomAck{Delay: delay, DropRate: dropRate, rng: rand.New(rand.NewSource(seed))}
}

// Ack implements AckStrategy.
func (r *RandomAck) Ack(ctx context.Context, pub Publisher, topic, commandID string) error {
	r.mu.Lock()
	drop := r.DropRate > 0 && r.rng.Float64() < r.DropRate
	r.mu.Unlock()
	if drop {
		return nil
	}
	if !wait(ctx, r.Delay) {
		return ctx.Err()
	}
	return publishAck(pub, topic, commandID)
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func publishAck(pub Publisher, topic, commandID string) error {
	payload, err := json.Marshal(struct {
		CommandID string `json:"command_id"`
	}{CommandID: commandID})
	if err != nil {
		return err
	}
	token := pub.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errAckTimeout
	}
	return token.Error()
}
