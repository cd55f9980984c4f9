// Package factory provides a small generic registry used to instantiate
// modules from configuration: metrics sinks, forecast sources and device
// families. Modules are defined by a type string and a map of raw settings.
// Factories decode the settings into typed structs and return the concrete
// implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[scheduler.ForecastSource]()
//	reg.Register("file", func(conf map[string]any) (scheduler.ForecastSource, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return forecast.NewFile(c.Path), nil
//	})
//	src, err := reg.Create(factory.ModuleConfig{Type: "file", Conf: map[string]any{"path": "prices.json"}})
package factory
