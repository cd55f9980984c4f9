package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/pkg/export"
)

var (
	scheduleJSON   bool
	scheduleFormat string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <consumer>",
	Short: "Preview the cheapest charging slots of a consumer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleJSON, "json", false, "print the whole plan as JSON")
	scheduleCmd.Flags().StringVarP(&scheduleFormat, "format", "f", "table", "slot output format: table, json or csv")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if !slices.Contains(export.Formats, scheduleFormat) {
		return fmt.Errorf("unsupported format %q", scheduleFormat)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	plan, err := app.PlanConsumer(ctx, cfg, args[0], time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if scheduleJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	if scheduleFormat != "table" {
		return export.Write(out, scheduleFormat, args[0], plan.Slots)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tPRICE")
	for _, s := range plan.Slots {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", s.StartTime.Local().Format("2006-01-02 15:04"), s.End().Local().Format("15:04"), s.Price)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	sum := plan.Summary
	fmt.Fprintf(out, "\n%d forecast hours, mean %.2f (min %.2f, max %.2f), selected mean %.2f, saving %.2f per hour\n",
		sum.Entries, sum.Mean, sum.Min, sum.Max, sum.SelectedMean, sum.SavingPerHour)
	return nil
}
