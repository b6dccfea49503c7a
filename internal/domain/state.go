package domain

import (
	"sort"
	"sync"
	"time"
)

// DeviceState is the last known value and observation time per canonical channel.
// A channel is present in Values iff it is present in Timestamps.
type DeviceState struct {
	Values     map[string]float64   `json:"values"`
	Timestamps map[string]time.Time `json:"timestamps"`
}

func newDeviceState() *DeviceState {
	return &DeviceState{
		Values:     make(map[string]float64),
		Timestamps: make(map[string]time.Time),
	}
}

func (s *DeviceState) clone() DeviceState {
	out := DeviceState{
		Values:     make(map[string]float64, len(s.Values)),
		Timestamps: make(map[string]time.Time, len(s.Timestamps)),
	}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	for k, v := range s.Timestamps {
		out.Timestamps[k] = v
	}
	return out
}

// StateTable holds the last known state of every device identity seen by
// the engine. Entries are created on first access and never removed.
// It is safe for concurrent use.
type StateTable struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

// NewStateTable creates an empty table.
func NewStateTable() *StateTable {
	return &StateTable{devices: make(map[string]*DeviceState)}
}

// Get returns a copy of the state for id, creating an empty entry first if
// the identity has not been seen.
func (t *StateTable) Get(id string) DeviceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getOrCreate(id).clone()
}

// Lookup returns a copy of the state for id without creating an entry.
func (t *StateTable) Lookup(id string) (DeviceState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.devices[id]
	if !ok {
		return DeviceState{}, false
	}
	return s.clone(), true
}

// Set records value and observation time for a channel, overwriting in place.
func (t *StateTable) Set(id, channel string, value float64, observedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.getOrCreate(id)
	s.Values[channel] = value
	s.Timestamps[channel] = observedAt
}

// Len returns the number of device identities in the table.
func (t *StateTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.devices)
}

// IDs returns the known device identities in sorted order.
func (t *StateTable) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.devices))
	for id := range t.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dump returns a deep copy of every entry.
func (t *StateTable) Dump() map[string]DeviceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]DeviceState, len(t.devices))
	for id, s := range t.devices {
		out[id] = s.clone()
	}
	return out
}

// getOrCreate must be called with mu held for writing.
func (t *StateTable) getOrCreate(id string) *DeviceState {
	s, ok := t.devices[id]
	if !ok {
		s = newDeviceState()
		t.devices[id] = s
	}
	return s
}
