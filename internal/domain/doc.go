// Package domain turns Netatmo weather station snapshots into value-change events.
//
// # Data Source
//
// Snapshots come from the Netatmo getstationsdata endpoint. A station is a
// base device (type NAMain) with up to several radio modules attached to it.
// Each device or module declares the measurement families it supports in
// data_type and reports its latest readings in dashboard_data, together with
// the capture time of those readings as seconds since the Unix epoch.
//
// The netatmo adapter flattens that response into a [Snapshot]. Measurement
// families are expanded into raw channel keys in declaration order:
//
//	Temperature → Temperature
//	Pressure    → Pressure, AbsolutePressure
//	Rain        → Rain, sum_rain_1, sum_rain_24
//	Wind        → WindStrength, WindAngle, GustStrength, GustAngle
//
// # Channels and Units
//
// Raw keys are mapped to canonical channel names and units by a closed
// table ([LookupChannel]). Keys missing from the table are ignored.
//
//	Temperature      → temperature        °C
//	CO2              → co2                ppm
//	Humidity         → humidity           %
//	Noise            → noise              dB
//	Pressure         → pressure           mbar
//	AbsolutePressure → absolute-pressure  mbar
//	Rain             → rain               mm
//	sum_rain_1       → rain-1h            mm
//	sum_rain_24      → rain-24h           mm
//	WindAngle        → wind-angle         °
//	WindStrength     → wind-strength      km/h
//	GustAngle        → gust-angle         °
//	GustStrength     → gust-strength      km/h
//
// # Battery
//
// Modules report a raw battery voltage (battery_vp, millivolts). It is turned
// into a percentage with a per-type lower bound and a shared upper bound of
// 6000, floored to an integer:
//
//	pct = floor(100 * (raw - min) / (6000 - min))
//
//	NAMain 4200 | NAModule1 3600 | NAModule2 3950 | NAModule3 3600 | NAModule4 4200
//
// Out of range voltages are passed through, so the result can leave [0, 100].
// Unknown types never produce a battery event.
//
// # Change Detection
//
// The [Engine] keeps the last value of every (device, channel) pair in a
// [StateTable] and emits a [ChangeEvent] only when a value differs exactly
// from the stored one. Battery events are stamped with the engine clock at
// diff time; sensor events are stamped with the device capture time.
package domain
