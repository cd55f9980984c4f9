package consumer

import (
	"fmt"

	"github.com/kilianp07/smartcharge/core/model"
)

// Config is the static configuration of a single consumer.
type Config struct {
	Name         string `json:"name" yaml:"name"`
	InputSource  string `json:"input_source" yaml:"input_source"`
	OutputSource string `json:"output_source" yaml:"output_source"`
	Mode         string `json:"mode" yaml:"mode"`
	// HoursToCharge is only read in precise mode.
	HoursToCharge int `json:"hours_to_charge" yaml:"hours_to_charge"`
	// WindowHours is only read in precise mode. Zero leaves the consumer without a window.
	WindowHours int `json:"charging_time_window_hours" yaml:"charging_time_window_hours"`
}

// ConfigError reports an invalid consumer configuration. Registration of the
// consumer is refused.
type ConfigError struct {
	Consumer string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Consumer == "" {
		return fmt.Sprintf("consumer config: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("consumer %q: %s %s", e.Consumer, e.Field, e.Reason)
}

// Validate checks mandatory fields and the mode.
func (c Config) Validate() error {
	required := []struct {
		field, value string
	}{
		{"name", c.Name},
		{"input_source", c.InputSource},
		{"output_source", c.OutputSource},
		{"mode", c.Mode},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Consumer: c.Name, Field: r.field, Reason: "is required"}
		}
	}
	if _, err := model.ParseMode(c.Mode); err != nil {
		return &ConfigError{Consumer: c.Name, Field: "mode", Reason: err.Error()}
	}
	if c.HoursToCharge < 0 {
		return &ConfigError{Consumer: c.Name, Field: "hours_to_charge", Reason: "must not be negative"}
	}
	if c.WindowHours < 0 {
		return &ConfigError{Consumer: c.Name, Field: "charging_time_window_hours", Reason: "must not be negative"}
	}
	return nil
}
