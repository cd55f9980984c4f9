package goe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/model"
)

// Car states reported by the charger in the "car" key.
const (
	CarIdle     = 1
	CarCharging = 2
	CarWaiting  = 3
	CarComplete = 4
)

// Force states accepted by the "frc" key.
const (
	ForceNeutral = 0
	ForceOff     = 1
	ForceOn      = 2
)

// Config describes how to reach one charger. URL is either the local
// address (http://192.168.1.20) or the cloud endpoint
// (https://<serial>.api.v3.go-e.io), which requires Token.
type Config struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	TimeoutMS int    `json:"timeout_ms"`
	Retries   int    `json:"retries"`
}

func (c *Config) SetDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 5000
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("goe: url is required")
	}
	return nil
}

// Charger talks to a go-e charger over its HTTP API v2.
type Charger struct {
	client *resty.Client
}

type statusResponse struct {
	Car int `json:"car"`
}

// New creates a Charger for cfg.
func New(cfg Config) (*Charger, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(time.Duration(cfg.TimeoutMS) * time.Millisecond).
		SetRetryCount(cfg.Retries)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &Charger{client: client}, nil
}

// FromConf decodes a raw device configuration into a Charger.
func FromConf(conf map[string]any) (*Charger, error) {
	var cfg Config
	if err := factory.Decode(conf, &cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Status maps the car state to a DeviceStatus. A completed charge means the
// charger accepts a new start.
func (c *Charger) Status(ctx context.Context, _ string) (model.DeviceStatus, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("filter", "car").
		SetResult(&statusResponse{}).
		Get("/api/status")
	if err != nil {
		return model.StatusOther, fmt.Errorf("goe status: %w", err)
	}
	if resp.IsError() {
		return model.StatusOther, fmt.Errorf("goe status: %s", resp.Status())
	}
	return carStatus(resp.Result().(*statusResponse).Car), nil
}

func carStatus(car int) model.DeviceStatus {
	switch car {
	case CarCharging:
		return model.StatusCharging
	case CarComplete:
		return model.StatusReady
	default:
		return model.StatusOther
	}
}

func (c *Charger) Start(ctx context.Context, _ string) error {
	return c.force(ctx, ForceOn)
}

func (c *Charger) Stop(ctx context.Context, _ string) error {
	return c.force(ctx, ForceOff)
}

func (c *Charger) force(ctx context.Context, state int) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("frc", strconv.Itoa(state)).
		Get("/api/set")
	if err != nil {
		return fmt.Errorf("goe set frc=%d: %w", state, err)
	}
	if resp.IsError() {
		return fmt.Errorf("goe set frc=%d: %s", state, resp.Status())
	}
	return nil
}
