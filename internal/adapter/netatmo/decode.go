package netatmo

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
)

// dataTypeKeys expands a declared data_type into the dashboard keys it
// reports, in the order they are emitted.
var dataTypeKeys = map[string][]string{
	"Pressure": {"Pressure", "AbsolutePressure"},
	"Rain":     {"Rain", "sum_rain_1", "sum_rain_24"},
	"Wind":     {"WindStrength", "WindAngle", "GustStrength", "GustAngle"},
}

// getstationsdata response types.

type stationsResponse struct {
	Status string `json:"status"`
	Body   struct {
		Devices []device `json:"devices"`
	} `json:"body"`
}

type device struct {
	ID            string                     `json:"_id"`
	Type          string                     `json:"type"`
	BatteryVP     *float64                   `json:"battery_vp"`
	DataType      []string                   `json:"data_type"`
	DashboardData map[string]json.RawMessage `json:"dashboard_data"`
	Modules       []device                   `json:"modules"`
}

// DecodeStationsData maps a getstationsdata response body to a snapshot.
// Non-numeric dashboard fields such as trends are ignored.
func DecodeStationsData(r io.Reader) (domain.Snapshot, error) {
	var resp stationsResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode stations data: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return domain.Snapshot{}, fmt.Errorf("stations data status %q", resp.Status)
	}

	snap := domain.Snapshot{Devices: make([]domain.Device, 0, len(resp.Body.Devices))}
	for _, d := range resp.Body.Devices {
		snap.Devices = append(snap.Devices, toDomain(d))
	}
	return snap, nil
}

func toDomain(d device) domain.Device {
	dev := domain.Device{
		ID:             d.ID,
		Type:           d.Type,
		BatteryVoltage: d.BatteryVP,
		DataChannels:   expandDataTypes(d.DataType),
		Readings:       make(map[string]float64, len(d.DashboardData)),
	}

	for key, raw := range d.DashboardData {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if key == "time_utc" {
			dev.CaptureTimeUTC = int64(v)
			continue
		}
		dev.Readings[key] = v
	}

	for _, m := range d.Modules {
		dev.Modules = append(dev.Modules, toDomain(m))
	}
	return dev
}

func expandDataTypes(types []string) []string {
	keys := make([]string, 0, len(types))
	for _, t := range types {
		if expanded, ok := dataTypeKeys[t]; ok {
			keys = append(keys, expanded...)
			continue
		}
		keys = append(keys, t)
	}
	return keys
}
