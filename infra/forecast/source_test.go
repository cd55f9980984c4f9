package forecast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/infra/logger"
)

type countingSource struct {
	calls   int
	entries []model.ForecastEntry
	err     error
}

func (c *countingSource) Prices(context.Context) ([]model.ForecastEntry, error) {
	c.calls++
	return c.entries, c.err
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestRegistry_UnknownFeed(t *testing.T) {
	r := NewRegistry(time.Minute, logger.NopLogger{})
	_, err := r.Forecast(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownFeed))
}

func TestRegistry_CachesAndSorts(t *testing.T) {
	r := NewRegistry(time.Minute, logger.NopLogger{})
	now := t0
	r.now = func() time.Time { return now }
	src := &countingSource{entries: []model.ForecastEntry{
		{StartTime: t0.Add(time.Hour), Price: 2},
		{StartTime: t0, Price: 1},
	}}
	r.Add("awattar", src)
	ctx := context.Background()

	got, err := r.Forecast(ctx, "awattar")
	require.NoError(t, err)
	assert.True(t, got[0].StartTime.Equal(t0))
	_, err = r.Forecast(ctx, "awattar")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	_, err = r.Forecast(ctx, "awattar")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestRegistry_FallsBackToStaleCache(t *testing.T) {
	r := NewRegistry(time.Minute, logger.NopLogger{})
	now := t0
	r.now = func() time.Time { return now }
	src := &countingSource{entries: []model.ForecastEntry{{StartTime: t0, Price: 1}}}
	r.Add("feed", src)
	ctx := context.Background()
	_, err := r.Forecast(ctx, "feed")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	src.err = errors.New("timeout")
	got, err := r.Forecast(ctx, "feed")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	r.Add("cold", &countingSource{err: errors.New("timeout")})
	_, err = r.Forecast(ctx, "cold")
	assert.Error(t, err)
}

func TestFromConfig_FileFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"start_time":"2024-03-01T11:00:00Z","marketprice":40.5},
		{"start_time":"2024-03-01T10:00:00Z","marketprice":42}
	]`), 0o600))

	r, err := FromConfig(Config{Feeds: map[string]factory.ModuleConfig{
		"local": {Type: "file", Conf: map[string]any{"path": path}},
	}}, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, r.Feeds())

	got, err := r.Forecast(context.Background(), "local")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 42.0, got[0].Price)
}

func TestFromConfig_Errors(t *testing.T) {
	_, err := FromConfig(Config{Feeds: map[string]factory.ModuleConfig{"x": {}}}, logger.NopLogger{})
	assert.Error(t, err)
	_, err = FromConfig(Config{Feeds: map[string]factory.ModuleConfig{"x": {Type: "carrier-pigeon"}}}, logger.NopLogger{})
	assert.Error(t, err)
	_, err = FromConfig(Config{Feeds: map[string]factory.ModuleConfig{"x": {Type: "file"}}}, logger.NopLogger{})
	assert.Error(t, err)
}
