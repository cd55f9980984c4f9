package simulator

import (
	"context"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/smartcharge/core/logger"
)

// GenerateWallboxes creates the wallboxes named in cfg, or Count wallboxes
// named wallbox01.. when no names are given.
func GenerateWallboxes(cfg Config, log logger.Logger) []*Wallbox {
	names := cfg.Names
	if len(names) == 0 {
		for i := 0; i < cfg.Count; i++ {
			names = append(names, fmt.Sprintf("wallbox%02d", i+1))
		}
	}
	strat := NewRandomAck(cfg.AckLatency, cfg.DropRate, cfg.Seed)
	out := make([]*Wallbox, len(names))
	for i, n := range names {
		b := &Battery{CapacityKWh: cfg.CapacityKWh, Soc: cfg.InitialSoC, ChargeRateKW: cfg.ChargeRateKW}
		out[i] = NewWallbox(n, b, strat, cfg.PlugRate, cfg.Seed+int64(i), log)
	}
	return out
}

var newMQTTClient = func(broker, clientID string) (Subscriber, func(), error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, token.Error()
	}
	return cli, func() { cli.Disconnect(250) }, nil
}

// Run connects to the broker and runs every wallbox until ctx is done.
func Run(ctx context.Context, cfg Config, log logger.Logger) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	cli, disconnect, err := newMQTTClient(cfg.Broker, fmt.Sprintf("smartcharge-sim-%d", cfg.Seed))
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer disconnect()

	boxes := GenerateWallboxes(cfg, log)
	errs := make(chan error, len(boxes))
	var wg sync.WaitGroup
	for _, w := range boxes {
		wg.Add(1)
		go func(w *Wallbox) {
			defer wg.Done()
			if err := w.Run(ctx, cli, cfg.TopicPrefix, cfg.Interval); err != nil {
				errs <- fmt.Errorf("%s: %w", w.Name, err)
			}
		}(w)
	}
	log.Infof("simulating %d wallboxes on %s", len(boxes), cfg.Broker)
	wg.Wait()
	close(errs)
	return <-errs
}
