package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrMalformedSnapshot is returned when a snapshot cannot be diffed without
// guessing, e.g. readings reported without a capture time.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Engine diffs snapshots against a state table and emits change events.
// Diff mutates the table, so callers must not run two Diffs concurrently
// against the same engine if they depend on event ordering.
type Engine struct {
	state *StateTable
	clock clockwork.Clock
}

// NewEngine creates an Engine over state. A nil clock uses real time.
func NewEngine(state *StateTable, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{state: state, clock: clock}
}

// State returns the table the engine records into.
func (e *Engine) State() *StateTable {
	return e.state
}

// Diff walks the snapshot in order (each device, then its modules) and
// returns the channels whose value changed since the previous call.
// Within a device the battery event comes first, followed by sensor
// channels in declaration order. Aliases rewrite device ids before state
// lookup and event emission.
//
// A malformed snapshot is rejected before any state is touched.
func (e *Engine) Diff(snapshot Snapshot, aliases Aliases) ([]ChangeEvent, error) {
	for i := range snapshot.Devices {
		if err := validateDevice(snapshot.Devices[i]); err != nil {
			return nil, err
		}
	}

	// Battery readings carry no capture time of their own; they are stamped
	// with the diff time while sensors use the device capture time.
	now := e.clock.Now().UTC()

	events := []ChangeEvent{}
	for i := range snapshot.Devices {
		events = e.diffDevice(events, snapshot.Devices[i], aliases, now)
	}
	return events, nil
}

func (e *Engine) diffDevice(events []ChangeEvent, d Device, aliases Aliases, now time.Time) []ChangeEvent {
	id := aliases.Resolve(d.ID)
	prev := e.state.Get(id)

	record := func(channel, unit string, value float64, at time.Time) {
		events = append(events, ChangeEvent{
			Device:     id,
			Channel:    channel,
			Value:      value,
			Unit:       unit,
			ObservedAt: at,
		})
		e.state.Set(id, channel, value, at)
		prev.Values[channel] = value
		prev.Timestamps[channel] = at
	}

	if d.BatteryVoltage != nil {
		if pct, ok := NormalizeBattery(d.Type, *d.BatteryVoltage); ok {
			if old, seen := prev.Values[BatteryChannel]; !seen || old != pct {
				record(BatteryChannel, BatteryUnit, pct, now)
			}
		}
	}

	observedAt := time.Unix(d.CaptureTimeUTC, 0).UTC()
	for _, key := range d.DataChannels {
		def, ok := LookupChannel(key)
		if !ok {
			continue
		}
		value, present := d.Readings[key]
		if !present || value == 0 {
			continue
		}
		if old, seen := prev.Values[def.CanonicalName]; seen && old == value {
			continue
		}
		record(def.CanonicalName, def.Unit, value, observedAt)
	}

	for i := range d.Modules {
		events = e.diffDevice(events, d.Modules[i], aliases, now)
	}
	return events
}

func validateDevice(d Device) error {
	if d.ID == "" {
		return fmt.Errorf("%w: device without id", ErrMalformedSnapshot)
	}
	if d.CaptureTimeUTC <= 0 && hasReadings(d) {
		return fmt.Errorf("%w: device %s has readings but no capture time", ErrMalformedSnapshot, d.ID)
	}
	for i := range d.Modules {
		if err := validateDevice(d.Modules[i]); err != nil {
			return err
		}
	}
	return nil
}

// hasReadings reports whether any declared, catalogued channel carries a value.
func hasReadings(d Device) bool {
	for _, key := range d.DataChannels {
		if _, ok := LookupChannel(key); !ok {
			continue
		}
		if v, ok := d.Readings[key]; ok && v != 0 {
			return true
		}
	}
	return false
}
