package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Device is one station base or module as read from the upstream API.
// Modules are nested under their base station.
type Device struct {
	ID   string
	Type string

	// BatteryVoltage is the raw battery reading in millivolts, nil when the
	// device is mains powered or did not report one.
	BatteryVoltage *float64

	// DataChannels lists raw channel keys in declaration order.
	DataChannels []string

	// Readings holds the latest value per raw channel key. A key declared in
	// DataChannels but missing here was not reported.
	Readings map[string]float64

	// CaptureTimeUTC is the reading capture time in seconds since the epoch.
	CaptureTimeUTC int64

	Modules []Device
}

// Snapshot is one full read of every device and module.
type Snapshot struct {
	Devices []Device
}

// ChangeEvent records a channel whose normalized value changed.
type ChangeEvent struct {
	Device     string    `json:"device"`
	Channel    string    `json:"channel"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	ObservedAt time.Time `json:"observed_at"`
}

// OutputEvent is the serialized form handed to a bus transport.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeChangeEvent marshals a change event into its JSON bus payload,
// keyed by device.
func SerializeChangeEvent(event ChangeEvent) (OutputEvent, error) {
	event.ObservedAt = event.ObservedAt.UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize change event: %w", err)
	}
	return OutputEvent{
		Key:   []byte(event.Device),
		Value: data,
		Headers: map[string]string{
			"channel": event.Channel,
			"unit":    event.Unit,
		},
	}, nil
}
