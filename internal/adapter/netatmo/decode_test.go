package netatmo

import (
	"os"
	"strings"
	"testing"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestDecodeStationsData_Fixture(t *testing.T) {
	f, err := os.Open("testdata/getstationsdata.json")
	require.NoError(t, err)
	defer f.Close()

	snap, err := DecodeStationsData(f)
	require.NoError(t, err)

	want := domain.Snapshot{Devices: []domain.Device{{
		ID:           "70:ee:50:00:00:01",
		Type:         "NAMain",
		DataChannels: []string{"Temperature", "CO2", "Humidity", "Noise", "Pressure", "AbsolutePressure"},
		Readings: map[string]float64{
			"Temperature": 21.4, "CO2": 612, "Humidity": 48, "Noise": 38,
			"Pressure": 1013.2, "AbsolutePressure": 1001.7,
			"min_temp": 19.8, "max_temp": 22.1,
		},
		CaptureTimeUTC: 1714125000,
		Modules: []domain.Device{
			{
				ID:             "02:00:00:00:00:02",
				Type:           "NAModule1",
				BatteryVoltage: ptr(5200),
				DataChannels:   []string{"Temperature", "Humidity"},
				Readings:       map[string]float64{"Temperature": 12.3, "Humidity": 81},
				CaptureTimeUTC: 1714124980,
			},
			{
				ID:             "05:00:00:00:00:03",
				Type:           "NAModule3",
				BatteryVoltage: ptr(4800),
				DataChannels:   []string{"Rain", "sum_rain_1", "sum_rain_24"},
				Readings:       map[string]float64{"Rain": 0, "sum_rain_1": 0.4, "sum_rain_24": 3.1},
				CaptureTimeUTC: 1714124990,
			},
			{
				ID:             "06:00:00:00:00:04",
				Type:           "NAModule2",
				BatteryVoltage: ptr(5550),
				DataChannels:   []string{"WindStrength", "WindAngle", "GustStrength", "GustAngle"},
				Readings:       map[string]float64{"WindStrength": 11, "WindAngle": 240, "GustStrength": 23, "GustAngle": 250},
				CaptureTimeUTC: 1714124995,
			},
			{
				ID:             "03:00:00:00:00:05",
				Type:           "NAModule4",
				BatteryVoltage: ptr(5100),
				DataChannels:   []string{"Temperature", "CO2", "Humidity"},
				Readings:       map[string]float64{},
			},
		},
	}}}

	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStationsData_FeedsDiffEngine(t *testing.T) {
	f, err := os.Open("testdata/getstationsdata.json")
	require.NoError(t, err)
	defer f.Close()

	snap, err := DecodeStationsData(f)
	require.NoError(t, err)

	engine := domain.NewEngine(domain.NewStateTable(), nil)
	events, err := engine.Diff(snap, domain.Aliases{"02:00:00:00:00:02": "garden"})
	require.NoError(t, err)

	channels := make([]string, 0, len(events))
	for _, ev := range events {
		channels = append(channels, ev.Device+"/"+ev.Channel)
	}
	assert.Equal(t, []string{
		"70:ee:50:00:00:01/temperature",
		"70:ee:50:00:00:01/co2",
		"70:ee:50:00:00:01/humidity",
		"70:ee:50:00:00:01/noise",
		"70:ee:50:00:00:01/pressure",
		"70:ee:50:00:00:01/absolute-pressure",
		"garden/battery",
		"garden/temperature",
		"garden/humidity",
		"05:00:00:00:00:03/battery",
		"05:00:00:00:00:03/rain-1h",
		"05:00:00:00:00:03/rain-24h",
		"06:00:00:00:00:04/battery",
		"06:00:00:00:00:04/wind-strength",
		"06:00:00:00:00:04/wind-angle",
		"06:00:00:00:00:04/gust-strength",
		"06:00:00:00:00:04/gust-angle",
		"03:00:00:00:00:05/battery",
	}, channels)
}

func TestDecodeStationsData_ErrorStatus(t *testing.T) {
	_, err := DecodeStationsData(strings.NewReader(`{"status":"error","body":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error")
}

func TestDecodeStationsData_InvalidJSON(t *testing.T) {
	_, err := DecodeStationsData(strings.NewReader(`{"body":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode stations data")
}

func TestDecodeStationsData_Empty(t *testing.T) {
	snap, err := DecodeStationsData(strings.NewReader(`{"status":"ok","body":{"devices":[]}}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Devices)
}
