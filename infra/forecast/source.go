package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

// ErrUnknownFeed is returned for feed ids that were never configured.
var ErrUnknownFeed = errors.New("unknown forecast feed")

// DefaultCacheTTL bounds how long a fetched forecast is reused.
const DefaultCacheTTL = 15 * time.Minute

// Source fetches the hourly price forecast of one provider.
type Source interface {
	Prices(ctx context.Context) ([]model.ForecastEntry, error)
}

// Config maps feed ids to provider modules.
type Config struct {
	Feeds           map[string]factory.ModuleConfig `json:"feeds" yaml:"feeds"`
	CacheTTLSeconds int                             `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

func (c *Config) SetDefaults() {
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = int(DefaultCacheTTL / time.Second)
	}
}

func (c Config) Validate() error {
	for id, m := range c.Feeds {
		if m.Type == "" {
			return fmt.Errorf("forecast feed %s: type is required", id)
		}
	}
	return nil
}

// Providers holds the built-in provider factories: awattar, rte_wholesale and file.
var Providers = factory.NewRegistry[Source]()

func init() {
	_ = Providers.Register("awattar", func(conf map[string]any) (Source, error) {
		var c AwattarConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewAwattar(c)
	})
	_ = Providers.Register("rte_wholesale", func(conf map[string]any) (Source, error) {
		var c RTEConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRTEWholesale(c)
	})
	_ = Providers.Register("file", func(conf map[string]any) (Source, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, errors.New("file forecast: path is required")
		}
		return NewFile(c.Path), nil
	})
}

type cacheEntry struct {
	entries []model.ForecastEntry
	fetched time.Time
}

// Registry serves forecasts by feed id and caches each feed for a TTL. A
// failed fetch falls back to the last cached forecast, if any.
type Registry struct {
	logger logger.Logger
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	feeds  map[string]Source
	cached map[string]cacheEntry
}

func NewRegistry(ttl time.Duration, log logger.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Registry{
		logger: log,
		ttl:    ttl,
		now:    time.Now,
		feeds:  make(map[string]Source),
		cached: make(map[string]cacheEntry),
	}
}

// FromConfig builds a registry with every configured feed.
func FromConfig(cfg Config, log logger.Logger) (*Registry, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := NewRegistry(time.Duration(cfg.CacheTTLSeconds)*time.Second, log)
	for id, m := range cfg.Feeds {
		src, err := Providers.Create(m)
		if err != nil {
			return nil, fmt.Errorf("forecast feed %s: %w", id, err)
		}
		r.Add(id, src)
	}
	return r, nil
}

// Add registers src under id, replacing any previous source.
func (r *Registry) Add(id string, src Source) {
	r.mu.Lock()
	r.feeds[id] = src
	delete(r.cached, id)
	r.mu.Unlock()
}

// Feeds lists the configured feed ids.
func (r *Registry) Feeds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.feeds))
	for id := range r.feeds {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Forecast returns the forecast of feedID sorted by start time.
func (r *Registry) Forecast(ctx context.Context, feedID string) ([]model.ForecastEntry, error) {
	r.mu.Lock()
	src, ok := r.feeds[feedID]
	c, hit := r.cached[feedID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feedID)
	}
	if hit && r.now().Sub(c.fetched) < r.ttl {
		return c.entries, nil
	}

	entries, err := src.Prices(ctx)
	if err != nil {
		if hit {
			r.logger.Warnf("forecast %s: %v, using cached forecast from %s", feedID, err, c.fetched.Format(time.RFC3339))
			return c.entries, nil
		}
		return nil, fmt.Errorf("forecast %s: %w", feedID, err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].StartTime.Before(entries[j].StartTime) })

	r.mu.Lock()
	r.cached[feedID] = cacheEntry{entries: entries, fetched: r.now()}
	r.mu.Unlock()
	r.logger.Debugw("forecast fetched", map[string]any{"feed": feedID, "entries": len(entries)})
	return entries, nil
}
