package forecast

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kilianp07/smartcharge/core/model"
)

var awattarHosts = map[string]string{
	"at": "https://api.awattar.at",
	"de": "https://api.awattar.de",
}

// AwattarConfig selects the aWATTar market. URL overrides the country host.
type AwattarConfig struct {
	Country   string `json:"country" yaml:"country"`
	URL       string `json:"url" yaml:"url"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
}

type awattarResponse struct {
	Data []struct {
		StartTimestamp int64   `json:"start_timestamp"`
		EndTimestamp   int64   `json:"end_timestamp"`
		MarketPrice    float64 `json:"marketprice"`
		Unit           string  `json:"unit"`
	} `json:"data"`
}

// Awattar reads day-ahead prices from the aWATTar market data API.
type Awattar struct {
	client *resty.Client
	now    func() time.Time
}

func NewAwattar(cfg AwattarConfig) (*Awattar, error) {
	base := cfg.URL
	if base == "" {
		if cfg.Country == "" {
			cfg.Country = "at"
		}
		h, ok := awattarHosts[cfg.Country]
		if !ok {
			return nil, fmt.Errorf("awattar: unsupported country %q", cfg.Country)
		}
		base = h
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Awattar{
		client: resty.New().SetBaseURL(base).SetTimeout(timeout).SetRetryCount(2),
		now:    time.Now,
	}, nil
}

// Prices fetches the forecast starting at the current hour.
func (a *Awattar) Prices(ctx context.Context) ([]model.ForecastEntry, error) {
	start := a.now().Truncate(time.Hour)
	var body awattarResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("start", strconv.FormatInt(start.UnixMilli(), 10)).
		SetResult(&body).
		Get("/v1/marketdata")
	if err != nil {
		return nil, fmt.Errorf("awattar request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("awattar: unexpected status %d", resp.StatusCode())
	}
	out := make([]model.ForecastEntry, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, model.ForecastEntry{
			StartTime: time.UnixMilli(d.StartTimestamp).UTC(),
			Price:     d.MarketPrice,
		})
	}
	return out, nil
}
