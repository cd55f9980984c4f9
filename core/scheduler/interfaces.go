package scheduler

import (
	"context"

	"github.com/kilianp07/smartcharge/core/model"
)

// ForecastSource returns the hourly price forecast of a feed. An error is
// handled like an empty forecast.
type ForecastSource interface {
	Forecast(ctx context.Context, feedID string) ([]model.ForecastEntry, error)
}

// DeviceStatusSource reports the live status of a consumer's device. An error
// is handled like model.StatusOther.
type DeviceStatusSource interface {
	Status(ctx context.Context, consumer string) (model.DeviceStatus, error)
}

// ChargeController sends start and stop commands to a consumer's device.
// Implementations must be idempotent at the device.
type ChargeController interface {
	Start(ctx context.Context, consumer string) error
	Stop(ctx context.Context, consumer string) error
}

// ScheduleStore persists the remaining slot sequence of each consumer.
type ScheduleStore interface {
	Schedules(ctx context.Context, consumer string) ([]model.ScheduleSlot, error)
	SetSchedules(ctx context.Context, consumer string, slots []model.ScheduleSlot) error
}

// ConsumerStateStore persists consumer records. Get returns
// model.ErrConsumerNotFound for unknown names.
type ConsumerStateStore interface {
	Get(ctx context.Context, name string) (model.ConsumerRecord, error)
	Set(ctx context.Context, rec model.ConsumerRecord) error
	List(ctx context.Context) ([]model.ConsumerRecord, error)
	Delete(ctx context.Context, name string) error
}
