package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var errNullEntry = errors.New("null entry")

// Decode parses a get_state body. The body must be a JSON object and each
// collection must have the right container type; individual entries that
// fail to decode are dropped into Rejected instead of failing the snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var raw struct {
		Cameras     map[string]json.RawMessage `json:"cameras"`
		ActiveZones map[string]json.RawMessage `json:"active_zones"`
		Alerts      []json.RawMessage          `json:"alerts"`
		Events      []json.RawMessage          `json:"events"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("snapshot body is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := &Snapshot{
		Cameras:     make(map[string]Camera, len(raw.Cameras)),
		ActiveZones: make(map[string]Zone, len(raw.ActiveZones)),
		Alerts:      make([]Alert, 0, len(raw.Alerts)),
		Events:      make([]Event, 0, len(raw.Events)),
	}

	for _, id := range sortedKeys(raw.Cameras) {
		var cam Camera
		if err := decodeEntry(raw.Cameras[id], &cam); err != nil {
			snap.reject("camera", id, err)
			continue
		}
		snap.Cameras[id] = cam
	}
	for _, id := range sortedKeys(raw.ActiveZones) {
		var zone Zone
		if err := decodeEntry(raw.ActiveZones[id], &zone); err != nil {
			snap.reject("zone", id, err)
			continue
		}
		snap.ActiveZones[id] = zone
	}
	for i, msg := range raw.Alerts {
		var alert Alert
		if err := decodeEntry(msg, &alert); err != nil {
			snap.reject("alert", strconv.Itoa(i), err)
			continue
		}
		snap.Alerts = append(snap.Alerts, alert)
	}
	for i, msg := range raw.Events {
		var event Event
		if err := decodeEntry(msg, &event); err != nil {
			snap.reject("event", strconv.Itoa(i), err)
			continue
		}
		snap.Events = append(snap.Events, event)
	}
	return snap, nil
}

func decodeEntry(msg json.RawMessage, v any) error {
	if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
		return errNullEntry
	}
	return json.Unmarshal(msg, v)
}

func (s *Snapshot) reject(kind, key string, err error) {
	s.Rejected = append(s.Rejected, EntityError{Kind: kind, Key: key, Err: err})
}

// SortedCameraIDs returns camera ids in a stable order.
func (s *Snapshot) SortedCameraIDs() []string { return sortedKeys(s.Cameras) }

// SortedZoneIDs returns active zone ids in a stable order.
func (s *Snapshot) SortedZoneIDs() []string { return sortedKeys(s.ActiveZones) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
