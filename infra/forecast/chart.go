package forecast

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/smartcharge/core/model"
)

// PriceChartHTML renders the forecast as a line chart with the selected
// charging slots highlighted as a second series.
func PriceChartHTML(title string, forecast []model.ForecastEntry, selected []model.ScheduleSlot) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date & Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	chosen := make(map[int64]struct{}, len(selected))
	for _, s := range selected {
		chosen[s.StartTime.Unix()] = struct{}{}
	}
	xAxis := make([]string, 0, len(forecast))
	prices := make([]opts.LineData, 0, len(forecast))
	slots := make([]opts.LineData, 0, len(forecast))
	for _, e := range forecast {
		xAxis = append(xAxis, e.StartTime.Format("2006-01-02 15:04"))
		prices = append(prices, opts.LineData{Value: e.Price})
		if _, ok := chosen[e.StartTime.Unix()]; ok {
			slots = append(slots, opts.LineData{Value: e.Price, Symbol: "circle", SymbolSize: 10})
		} else {
			slots = append(slots, opts.LineData{Value: "-"})
		}
	}
	line.SetXAxis(xAxis).
		AddSeries("Price", prices).
		AddSeries("Charging", slots)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.String(), nil
}
