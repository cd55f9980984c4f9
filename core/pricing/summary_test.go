package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	fc := hourlyForecast(start, 10, 20, 30, 40)
	sel := SelectCheapest(fc, start.Add(4*time.Hour), 2)
	s := Summarize(fc, sel)
	assert.Equal(t, 4, s.Entries)
	assert.InDelta(t, 25.0, s.Mean, 1e-9)
	assert.InDelta(t, 10.0, s.Min, 1e-9)
	assert.InDelta(t, 40.0, s.Max, 1e-9)
	assert.InDelta(t, 15.0, s.SelectedMean, 1e-9)
	assert.InDelta(t, 10.0, s.SavingPerHour, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil, nil))
	s := Summarize(hourlyForecast(time.Now(), 7), nil)
	assert.Equal(t, 1, s.Entries)
	assert.Zero(t, s.StdDev)
	assert.Zero(t, s.SelectedMean)
}
