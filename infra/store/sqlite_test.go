package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(name string) model.ConsumerRecord {
	deadline := time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC)
	return model.ConsumerRecord{
		Name:              name,
		InputSource:       "awattar",
		OutputSource:      "goe",
		Mode:              model.ModeSimple,
		Enabled:           true,
		SchedulingEnabled: true,
		HoursToCharge:     3,
		WindowHours:       12,
		WindowDeadline:    &deadline,
	}
}

func TestSQLiteStore_Records(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "garage")
	assert.True(t, errors.Is(err, model.ErrConsumerNotFound))

	rec := record("garage")
	rec.PendingRetry = true
	require.NoError(t, s.Set(ctx, rec))
	require.NoError(t, s.Set(ctx, record("carport")))

	got, err := s.Get(ctx, "garage")
	require.NoError(t, err)
	assert.True(t, got.PendingRetry)
	assert.True(t, got.WindowDeadline.Equal(*rec.WindowDeadline))
	assert.Equal(t, model.ModeSimple, got.Mode)

	rec.PendingRetry = false
	require.NoError(t, s.Set(ctx, rec))
	got, err = s.Get(ctx, "garage")
	require.NoError(t, err)
	assert.False(t, got.PendingRetry)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "carport", all[0].Name)
}

func TestSQLiteStore_Schedules(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	slots := []model.ScheduleSlot{
		{Price: 12.5, StartTime: start.Add(2 * time.Hour)},
		{Price: 10, StartTime: start},
	}
	require.NoError(t, s.SetSchedules(ctx, "garage", slots))

	got, err := s.Schedules(ctx, "garage")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 12.5, got[0].Price)
	assert.True(t, got[1].StartTime.Equal(start))

	require.NoError(t, s.SetSchedules(ctx, "garage", slots[1:]))
	got, err = s.Schedules(ctx, "garage")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.SetSchedules(ctx, "garage", nil))
	got, err = s.Schedules(ctx, "garage")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_DeleteRemovesSchedules(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, record("garage")))
	require.NoError(t, s.SetSchedules(ctx, "garage", []model.ScheduleSlot{{Price: 1, StartTime: time.Unix(0, 0)}}))

	require.NoError(t, s.Delete(ctx, "garage"))
	_, err := s.Get(ctx, "garage")
	assert.True(t, errors.Is(err, model.ErrConsumerNotFound))
	slots, err := s.Schedules(ctx, "garage")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), record("garage")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Get(context.Background(), "garage")
	require.NoError(t, err)
	assert.Equal(t, "garage", got.Name)
}
