package pricing

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/smartcharge/core/model"
)

// Summary describes a forecast and the slots picked from it.
type Summary struct {
	Entries       int     `json:"entries"`
	Mean          float64 `json:"mean"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	StdDev        float64 `json:"std_dev"`
	SelectedMean  float64 `json:"selected_mean"`
	SavingPerHour float64 `json:"saving_per_hour"`
}

// Summarize computes price statistics for forecast and selected. The saving
// is the difference between the forecast mean and the selected mean.
func Summarize(forecast []model.ForecastEntry, selected []model.ScheduleSlot) Summary {
	var s Summary
	if len(forecast) == 0 {
		return s
	}
	prices := make([]float64, len(forecast))
	for i, f := range forecast {
		prices[i] = f.Price
	}
	s.Entries = len(prices)
	s.Min = floats.Min(prices)
	s.Max = floats.Max(prices)
	s.Mean, s.StdDev = stat.MeanStdDev(prices, nil)
	if len(prices) == 1 {
		s.StdDev = 0
	}
	if len(selected) == 0 {
		return s
	}
	picked := make([]float64, len(selected))
	for i, sl := range selected {
		picked[i] = sl.Price
	}
	s.SelectedMean = stat.Mean(picked, nil)
	s.SavingPerHour = s.Mean - s.SelectedMean
	return s
}
