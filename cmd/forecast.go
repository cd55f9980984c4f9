package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/infra/forecast"
	"github.com/kilianp07/smartcharge/infra/logger"
)

var (
	chartOut      string
	chartConsumer string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Price forecast commands",
}

var forecastChartCmd = &cobra.Command{
	Use:   "chart <feed>",
	Short: "Render a feed's price forecast as an HTML chart",
	Args:  cobra.ExactArgs(1),
	RunE:  runForecastChart,
}

func init() {
	forecastChartCmd.Flags().StringVarP(&chartOut, "output", "o", "forecast.html", "output file")
	forecastChartCmd.Flags().StringVar(&chartConsumer, "consumer", "", "highlight the slots this consumer would pick")
	forecastCmd.AddCommand(forecastChartCmd)
	rootCmd.AddCommand(forecastCmd)
}

func runForecastChart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feed := args[0]
	feeds, err := forecast.FromConfig(cfg.Forecast, logger.New("forecast"))
	if err != nil {
		return err
	}
	fc, err := feeds.Forecast(ctx, feed)
	if err != nil {
		return err
	}
	title := feed
	plan := app.Plan{}
	if chartConsumer != "" {
		if plan, err = app.PlanConsumer(ctx, cfg, chartConsumer, time.Now()); err != nil {
			return err
		}
		title = fmt.Sprintf("%s (%s)", feed, chartConsumer)
	}
	html, err := forecast.PriceChartHTML(title, fc, plan.Slots)
	if err != nil {
		return err
	}
	if err := os.WriteFile(chartOut, []byte(html), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", chartOut)
	return nil
}
