package plugins

import (
	"sync"

	"github.com/kilianp07/smartcharge/infra/device"
	"github.com/kilianp07/smartcharge/infra/goe"
	"github.com/kilianp07/smartcharge/infra/mqtt"
)

// MQTTConnector returns the shared MQTT client, connecting on first use.
type MQTTConnector func() (*mqtt.PahoClient, error)

// SharedMQTT connects once with cfg and hands the same client to every
// consumer bound to the mqtt family.
func SharedMQTT(cfg mqtt.Config) MQTTConnector {
	var once sync.Once
	var client *mqtt.PahoClient
	var err error
	return func() (*mqtt.PahoClient, error) {
		once.Do(func() { client, err = mqtt.NewPahoClient(cfg) })
		return client, err
	}
}

// RegisterDevices adds the built-in device families to r: "goe" chargers
// reached over HTTP and "mqtt" devices reached through connect.
func RegisterDevices(r *device.Router, connect MQTTConnector) error {
	if err := r.RegisterFamily("goe", func(conf map[string]any) (device.Device, error) {
		c, err := goe.FromConf(conf)
		if err != nil {
			return nil, err
		}
		return c, nil
	}); err != nil {
		return err
	}
	return r.RegisterFamily("mqtt", func(map[string]any) (device.Device, error) {
		c, err := connect()
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
