package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/consumer"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/pricing"
	"github.com/kilianp07/smartcharge/infra/forecast"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Plan previews the slots a freshly registered consumer would charge in.
type Plan struct {
	Record   model.ConsumerRecord  `json:"record"`
	Forecast []model.ForecastEntry `json:"-"`
	Slots    []model.ScheduleSlot  `json:"slots"`
	Summary  pricing.Summary       `json:"summary"`
}

// PlanConsumer builds the record of name as of now and ranks its feed. It
// does not touch devices or stores.
func PlanConsumer(ctx context.Context, cfg *config.Config, name string, now time.Time) (Plan, error) {
	all, err := cfg.AllConsumers()
	if err != nil {
		return Plan{}, err
	}
	var cc *consumer.Config
	for i := range all {
		if all[i].Name == name {
			cc = &all[i]
			break
		}
	}
	if cc == nil {
		return Plan{}, fmt.Errorf("%w: %s", model.ErrConsumerNotFound, name)
	}
	feeds, err := forecast.FromConfig(cfg.Forecast, logger.New("forecast"))
	if err != nil {
		return Plan{}, err
	}
	fc, err := feeds.Forecast(ctx, cc.InputSource)
	if err != nil {
		return Plan{}, err
	}
	rec := consumer.NewRecord(*cc, now)
	slots := pricing.SelectForRecord(fc, rec)
	return Plan{Record: rec, Forecast: fc, Slots: slots, Summary: pricing.Summarize(fc, slots)}, nil
}
