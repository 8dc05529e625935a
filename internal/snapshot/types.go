// Package snapshot defines the backend state snapshot and fetches it.
package snapshot

// DetectionType names what a camera last saw. The set is open: values the
// board does not know are carried through and treated as non-threats.
type DetectionType string

const (
	DetectionHuman    DetectionType = "human"
	DetectionVehicle  DetectionType = "vehicle"
	DetectionElephant DetectionType = "elephant"
	DetectionTiger    DetectionType = "tiger"
	DetectionWolf     DetectionType = "wolf"
	DetectionLeopard  DetectionType = "leopard"
)

// IsThreat reports whether the detection warrants alert styling.
func (d DetectionType) IsThreat() bool {
	return d == DetectionHuman || d == DetectionVehicle
}

// IsAnimal reports whether the detection opens an active zone on the backend.
func (d DetectionType) IsAnimal() bool {
	switch d {
	case DetectionElephant, DetectionTiger, DetectionWolf, DetectionLeopard:
		return true
	}
	return false
}

// Detection is a camera's most recent sighting.
type Detection struct {
	Type      DetectionType `json:"type"`
	Timestamp Timestamp     `json:"timestamp"`
}

// Camera is one camera entry. Lat and Lon stay nil when the backend omits
// them so that only this camera is skipped.
type Camera struct {
	Name          string     `json:"name"`
	Lat           *float64   `json:"lat"`
	Lon           *float64   `json:"lon"`
	LastDetection *Detection `json:"last_detection"`
}

// Position returns the camera coordinates, or false when either is missing.
func (c Camera) Position() (LatLng, bool) {
	return position(c.Lat, c.Lon)
}

// Zone is an active alert zone keyed by the owning camera id.
type Zone struct {
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	Timestamp Timestamp `json:"timestamp"`
}

// Center returns the zone centre, or false when either coordinate is missing.
func (z Zone) Center() (LatLng, bool) {
	return position(z.Lat, z.Lon)
}

// Alert is a high-priority alert as ordered by the backend.
type Alert struct {
	ID        string    `json:"id,omitempty"`
	CameraID  string    `json:"camera_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

// Event is one line in the recent events log.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
	IsThreat  bool      `json:"is_threat"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func position(lat, lon *float64) (LatLng, bool) {
	if lat == nil || lon == nil {
		return LatLng{}, false
	}
	return LatLng{Lat: *lat, Lon: *lon}, true
}

// EntityError records a snapshot entry dropped during decoding.
type EntityError struct {
	Kind string // "camera", "zone", "alert", "event"
	Key  string // map key or slice index
	Err  error
}

func (e EntityError) Error() string {
	return e.Kind + " " + e.Key + ": " + e.Err.Error()
}

func (e EntityError) Unwrap() error { return e.Err }

// Snapshot is one point-in-time backend state. It is not modified after
// decoding.
type Snapshot struct {
	Cameras     map[string]Camera `json:"cameras"`
	ActiveZones map[string]Zone   `json:"active_zones"`
	Alerts      []Alert           `json:"alerts"`
	Events      []Event           `json:"events"`

	// Rejected lists entries whose JSON shape could not be decoded.
	Rejected []EntityError `json:"-"`
}
