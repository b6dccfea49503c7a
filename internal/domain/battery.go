package domain

import "math"

// batteryMaxRaw is the full-charge voltage shared by every device type.
const batteryMaxRaw = 6000

// BatteryRange is the raw voltage span used to scale a device type's battery.
type BatteryRange struct {
	Subtype string
	MinRaw  float64
	MaxRaw  float64
}

var batteryRanges = map[string]BatteryRange{
	"NAMain":    {Subtype: "NAMain", MinRaw: 4200, MaxRaw: batteryMaxRaw},
	"NAModule1": {Subtype: "NAModule1", MinRaw: 3600, MaxRaw: batteryMaxRaw},
	"NAModule2": {Subtype: "NAModule2", MinRaw: 3950, MaxRaw: batteryMaxRaw},
	"NAModule3": {Subtype: "NAModule3", MinRaw: 3600, MaxRaw: batteryMaxRaw},
	"NAModule4": {Subtype: "NAModule4", MinRaw: 4200, MaxRaw: batteryMaxRaw},
}

// NormalizeBattery converts a raw battery voltage to a floored percentage.
// The second return is false for device types without a known range.
// No clamping is applied: anomalous voltages yield values outside [0, 100].
func NormalizeBattery(subtype string, rawVoltage float64) (float64, bool) {
	r, ok := batteryRanges[subtype]
	if !ok {
		return 0, false
	}
	return math.Floor(100 * (rawVoltage - r.MinRaw) / (r.MaxRaw - r.MinRaw)), true
}
