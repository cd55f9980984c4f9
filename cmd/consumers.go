package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/consumer"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/store"
)

var consumersCmd = &cobra.Command{
	Use:   "consumers",
	Short: "Consumer related commands",
}

var consumersLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List consumers and their scheduling state",
	RunE:  runConsumersLs,
}

func init() {
	consumersCmd.AddCommand(consumersLsCmd)
	rootCmd.AddCommand(consumersCmd)
}

// runConsumersLs prints the persisted records when the sqlite store is used
// and the freshly built records otherwise.
func runConsumersLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	recs, err := loadRecords(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tFEED\tOUTPUT\tSTATE\tHOURS\tDEADLINE\tSCHEDULING")
	for _, r := range recs {
		deadline := "-"
		if r.WindowDeadline != nil {
			deadline = r.WindowDeadline.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%t\n",
			r.Name, r.Mode, r.InputSource, r.OutputSource, r.State(), r.HoursToCharge, deadline, r.SchedulingEnabled)
	}
	return w.Flush()
}

func loadRecords(ctx context.Context, cfg *config.Config) ([]model.ConsumerRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Store.Backend == "sqlite" {
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = st.Close() }()
		return st.List(ctx)
	}
	all, err := cfg.AllConsumers()
	if err != nil {
		return nil, err
	}
	return consumer.Build(all, time.Now())
}
