package domain

// ChannelDefinition maps a raw upstream key to its canonical name and unit.
type ChannelDefinition struct {
	RawKey        string
	CanonicalName string
	Unit          string
}

// BatteryChannel is the canonical channel for normalized battery levels.
// It is produced by [NormalizeBattery], never by a catalog lookup.
const (
	BatteryChannel = "battery"
	BatteryUnit    = "%"
)

var channelCatalog = map[string]ChannelDefinition{}

func init() {
	for _, def := range []ChannelDefinition{
		{RawKey: "Temperature", CanonicalName: "temperature", Unit: "°C"},
		{RawKey: "CO2", CanonicalName: "co2", Unit: "ppm"},
		{RawKey: "Humidity", CanonicalName: "humidity", Unit: "%"},
		{RawKey: "Noise", CanonicalName: "noise", Unit: "dB"},
		{RawKey: "Pressure", CanonicalName: "pressure", Unit: "mbar"},
		{RawKey: "AbsolutePressure", CanonicalName: "absolute-pressure", Unit: "mbar"},
		{RawKey: "Rain", CanonicalName: "rain", Unit: "mm"},
		{RawKey: "sum_rain_1", CanonicalName: "rain-1h", Unit: "mm"},
		{RawKey: "sum_rain_24", CanonicalName: "rain-24h", Unit: "mm"},
		{RawKey: "WindAngle", CanonicalName: "wind-angle", Unit: "°"},
		{RawKey: "WindStrength", CanonicalName: "wind-strength", Unit: "km/h"},
		{RawKey: "GustAngle", CanonicalName: "gust-angle", Unit: "°"},
		{RawKey: "GustStrength", CanonicalName: "gust-strength", Unit: "km/h"},
	} {
		channelCatalog[def.RawKey] = def
	}
}

// LookupChannel returns the definition for a raw channel key.
func LookupChannel(rawKey string) (ChannelDefinition, bool) {
	def, ok := channelCatalog[rawKey]
	return def, ok
}
