package forecast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kilianp07/smartcharge/auth"
	"github.com/kilianp07/smartcharge/core/model"
)

const rteBaseURL = "https://digital.iservices.rte-france.com"

// RTEConfig configures the RTE wholesale market feed.
type RTEConfig struct {
	Auth auth.Conf `json:"auth" yaml:"auth"`
	URL  string    `json:"url" yaml:"url"`
	// Hours is the forecast horizon requested from now.
	Hours int `json:"hours" yaml:"hours"`
}

type rteResponse struct {
	FrancePowerExchanges []struct {
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		UpdatedDate string `json:"updated_date"`
		Values      []struct {
			StartDate string  `json:"start_date"`
			EndDate   string  `json:"end_date"`
			Value     float64 `json:"value"`
			Price     float64 `json:"price"`
		} `json:"values"`
	} `json:"france_power_exchanges"`
}

// RTEWholesale reads French power exchange prices from the RTE open API.
type RTEWholesale struct {
	client *resty.Client
	creds  *auth.ClientCred
	hours  int
	now    func() time.Time
}

func NewRTEWholesale(cfg RTEConfig) (*RTEWholesale, error) {
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		cfg.URL = rteBaseURL
	}
	if cfg.Hours <= 0 {
		cfg.Hours = 24
	}
	return &RTEWholesale{
		client: resty.New().SetBaseURL(cfg.URL).SetTimeout(15 * time.Second),
		creds:  auth.NewClientCred(cfg.Auth),
		hours:  cfg.Hours,
		now:    time.Now,
	}, nil
}

func (r *RTEWholesale) Prices(ctx context.Context) ([]model.ForecastEntry, error) {
	start := r.now().Truncate(time.Hour)
	end := start.Add(time.Duration(r.hours) * time.Hour)

	token, err := r.creds.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("rte auth: %w", err)
	}
	var body rteResponse
	resp, err := r.request(ctx, token, start, end, &body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		if token, err = r.creds.ForceRefresh(ctx); err != nil {
			return nil, fmt.Errorf("rte auth: %w", err)
		}
		if resp, err = r.request(ctx, token, start, end, &body); err != nil {
			return nil, err
		}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rte: unexpected status %d, body: %s", resp.StatusCode(), resp.Body())
	}

	var out []model.ForecastEntry
	for _, ex := range body.FrancePowerExchanges {
		for _, v := range ex.Values {
			t, err := time.Parse(time.RFC3339, v.StartDate)
			if err != nil {
				return nil, fmt.Errorf("rte: failed to parse time: %w", err)
			}
			out = append(out, model.ForecastEntry{StartTime: t.UTC(), Price: v.Price})
		}
	}
	if out == nil {
		return nil, errors.New("rte: no price values in response")
	}
	return out, nil
}

func (r *RTEWholesale) request(ctx context.Context, token string, start, end time.Time, body *rteResponse) (*resty.Response, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"start_date": start.Format(time.RFC3339),
			"end_date":   end.Format(time.RFC3339),
		}).
		SetResult(body).
		Get("/open_api/wholesale_market/v2/france_power_exchanges")
	if err != nil {
		return nil, fmt.Errorf("rte request: %w", err)
	}
	return resp, nil
}
