package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/simulator"
)

var simCfg simulator.Config

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated MQTT wallboxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return simulator.Run(ctx, simCfg, logger.New("simulator"))
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simCfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	f.StringVar(&simCfg.TopicPrefix, "prefix", "smartcharge", "topic prefix")
	f.StringSliceVar(&simCfg.Names, "names", nil, "wallbox names, matching the consumer names")
	f.IntVar(&simCfg.Count, "count", 1, "number of wallboxes when --names is empty")
	f.DurationVar(&simCfg.Interval, "interval", 10*time.Second, "status publish interval")
	f.DurationVar(&simCfg.AckLatency, "ack-latency", 0, "delay before acknowledging a command")
	f.Float64Var(&simCfg.DropRate, "drop-rate", 0, "probability to drop an acknowledgment")
	f.Float64Var(&simCfg.PlugRate, "plug-rate", 0, "probability per interval to plug or unplug the car")
	f.Float64Var(&simCfg.CapacityKWh, "capacity", 40, "battery capacity in kWh")
	f.Float64Var(&simCfg.ChargeRateKW, "rate", 11, "charging power in kW")
	f.Float64Var(&simCfg.InitialSoC, "soc", 0.3, "initial state of charge")
	f.Int64Var(&simCfg.Seed, "seed", 0, "random seed, 0 picks one")
	rootCmd.AddCommand(simulateCmd)
}
