package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/smartcharge/api/consumers"
	"github.com/kilianp07/smartcharge/core/consumer"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/scheduler"
	"github.com/kilianp07/smartcharge/infra/eventstream"
	"github.com/kilianp07/smartcharge/infra/forecast"
	"github.com/kilianp07/smartcharge/infra/monitoring"
	"github.com/kilianp07/smartcharge/infra/mqtt"
)

type Config struct {
	Scheduler scheduler.Config  `json:"scheduler"`
	Consumers []consumer.Config `json:"consumers"`
	// ConsumersFile points to a YAML or JSON file with more consumers.
	// Relative paths are resolved against the configuration file.
	ConsumersFile string          `json:"consumers_file"`
	Forecast      forecast.Config `json:"forecast"`
	// Devices holds the device settings of each consumer, keyed by consumer
	// name. The device family is the consumer's output_source.
	Devices map[string]map[string]any `json:"devices"`
	MQTT    mqtt.Config               `json:"mqtt"`
	Store   StoreConfig               `json:"store"`
	Metrics metrics.Config            `json:"metrics"`
	API     consumers.Config          `json:"api"`
	Events  EventsConfig              `json:"events"`
	Sentry  monitoring.Config         `json:"sentry"`
}

// EventsConfig groups the external event streams.
type EventsConfig struct {
	Kafka eventstream.Config `json:"kafka"`
}

// StoreConfig selects where consumer records and schedules are kept.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "smartcharge.db"
	}
}

func (c StoreConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}

// Load reads the configuration at path and applies K_ prefixed environment
// overrides, with "__" separating nested keys (K_STORE__BACKEND=sqlite).
func Load(path string) (*Config, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if cfg.ConsumersFile != "" && !filepath.IsAbs(cfg.ConsumersFile) {
		cfg.ConsumersFile = filepath.Join(filepath.Dir(path), cfg.ConsumersFile)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Forecast.SetDefaults()
	c.Store.SetDefaults()
	c.Events.Kafka.SetDefaults()
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
}

// Validate checks every section and that each consumer can be served: its
// feed is configured and its device family has the settings it needs.
func (c *Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.Forecast.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Events.Kafka.Validate(); err != nil {
		return err
	}
	all, err := c.AllConsumers()
	if err != nil {
		return err
	}
	for _, cc := range all {
		if _, ok := c.Forecast.Feeds[cc.InputSource]; !ok {
			return fmt.Errorf("consumer %s: forecast feed %q is not configured", cc.Name, cc.InputSource)
		}
		switch cc.OutputSource {
		case "mqtt":
			if err := c.MQTT.Validate(); err != nil {
				return fmt.Errorf("consumer %s: %w", cc.Name, err)
			}
		default:
			if _, ok := c.Devices[cc.Name]; !ok {
				return fmt.Errorf("consumer %s: no device settings for output source %q", cc.Name, cc.OutputSource)
			}
		}
	}
	return nil
}

// AllConsumers returns the inline consumers followed by those of
// ConsumersFile. Each definition is validated and names must be unique.
func (c *Config) AllConsumers() ([]consumer.Config, error) {
	out := append([]consumer.Config(nil), c.Consumers...)
	if c.ConsumersFile != "" {
		extra, err := loadConsumersFile(c.ConsumersFile)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)
	}
	seen := make(map[string]struct{}, len(out))
	for _, cc := range out {
		if err := cc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[cc.Name]; dup {
			return nil, &consumer.ConfigError{Consumer: cc.Name, Field: "name", Reason: "is defined twice"}
		}
		seen[cc.Name] = struct{}{}
	}
	return out, nil
}
