package model

// DeviceStatus is the charging state reported by a device.
type DeviceStatus int

const (
	// StatusOther covers disconnected, unknown and error states.
	StatusOther DeviceStatus = iota
	// StatusCharging means the device is currently charging.
	StatusCharging
	// StatusReady means the device finished charging and accepts a new start command.
	StatusReady
)

// String returns a lowercase representation of the status.
func (s DeviceStatus) String() string {
	switch s {
	case StatusCharging:
		return "charging"
	case StatusReady:
		return "ready"
	default:
		return "other"
	}
}

// ParseDeviceStatus maps a textual status to a DeviceStatus. Unknown values map to StatusOther.
func ParseDeviceStatus(s string) DeviceStatus {
	switch s {
	case "charging":
		return StatusCharging
	case "ready":
		return StatusReady
	default:
		return StatusOther
	}
}
