// Package stateserver is a reference backend for the board. It keeps the
// camera, zone, alert and event state in memory and applies detection
// events reported by camera traps.
package stateserver

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/timeutil"
)

const (
	// ZoneRadiusKm is how close a human or vehicle must be to an active
	// zone to raise an alert.
	ZoneRadiusKm = 2.0
	// ZoneTTL is how long an active zone lives after its last sighting.
	ZoneTTL = time.Hour

	maxAlerts = 10
	maxEvents = 20

	earthRadiusKm = 6371.0
)

// TimestampLayout matches the naive ISO timestamps the board expects.
const TimestampLayout = "2006-01-02T15:04:05.999999"

// CameraSeed describes one camera at startup.
type CameraSeed struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// DefaultCameras is the trap network the board was built for.
var DefaultCameras = []CameraSeed{
	{ID: "CAM001", Name: "Koramangala Reserve", Lat: 12.9716, Lon: 77.5946},
	{ID: "CAM002", Name: "Cubbon Park Outskirts", Lat: 12.9791, Lon: 77.5929},
	{ID: "CAM003", Name: "Bellandur Wetlands", Lat: 12.9515, Lon: 77.6322},
	{ID: "CAM004", Name: "Hebbal Lake North", Lat: 13.0356, Lon: 77.5623},
}

// Wire types for GET /api/get_state.
type (
	Detection struct {
		Type      string `json:"type"`
		Timestamp string `json:"timestamp"`
	}
	Camera struct {
		Name          string     `json:"name"`
		Lat           float64    `json:"lat"`
		Lon           float64    `json:"lon"`
		LastDetection *Detection `json:"last_detection"`
	}
	Zone struct {
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Timestamp string  `json:"timestamp"`
	}
	Alert struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		CameraID  string `json:"camera_id"`
		Message   string `json:"message"`
	}
	Event struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Message   string `json:"message"`
		IsThreat  bool   `json:"is_threat"`
	}
	State struct {
		Cameras     map[string]Camera `json:"cameras"`
		ActiveZones map[string]Zone   `json:"active_zones"`
		Alerts      []Alert           `json:"alerts"`
		Events      []Event           `json:"events"`
	}
)

type zone struct {
	at  time.Time
	pos snapshot.LatLng
}

// Store holds the backend state. All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	clock   timeutil.Clock
	cameras map[string]*Camera
	zones   map[string]zone
	alerts  []Alert
	events  []Event
	log     logger.Module

	// NewID issues alert and event ids.
	NewID func() string
}

// NewStore returns a store seeded with cameras. A nil clock means wall time.
func NewStore(cameras []CameraSeed, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Store{
		clock:   clock,
		cameras: make(map[string]*Camera, len(cameras)),
		zones:   make(map[string]zone),
		alerts:  []Alert{},
		events:  []Event{},
		log:     logger.For("StateStore"),
		NewID:   uuid.NewString,
	}
	for _, c := range cameras {
		s.cameras[c.ID] = &Camera{Name: c.Name, Lat: c.Lat, Lon: c.Lon}
	}
	return s
}

// CameraIDs returns the known camera ids in order.
func (s *Store) CameraIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cameras))
	for id := range s.cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProcessEvent applies one detection reported by cameraID. Unknown cameras
// and empty detections are ignored; the return value reports whether the
// event was applied.
func (s *Store) ProcessEvent(cameraID string, detection snapshot.DetectionType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[cameraID]
	if cameraID == "" || detection == "" || !ok {
		s.log.Debug("Ignoring event camera=%q detection=%q", cameraID, detection)
		return false
	}

	now := s.clock.Now()
	stamp := now.Format(TimestampLayout)
	where := fmt.Sprintf("%s (%s)", cam.Name, cameraID)
	cam.LastDetection = &Detection{Type: string(detection), Timestamp: stamp}

	s.expireZonesLocked(now)

	switch {
	case detection.IsAnimal():
		s.zones[cameraID] = zone{at: now, pos: snapshot.LatLng{Lat: cam.Lat, Lon: cam.Lon}}
		s.addEventLocked(stamp, fmt.Sprintf("🐾 %s spotted at %s. Area is now an Active Zone.", capitalize(string(detection)), where), false)

	case detection.IsThreat():
		pos := snapshot.LatLng{Lat: cam.Lat, Lon: cam.Lon}
		if s.inActiveZoneLocked(pos) {
			msg := fmt.Sprintf("🚨 THREAT: Human/Vehicle detected at %s inside an active animal zone. Potential poacher.", where)
			s.addAlertLocked(stamp, cameraID, msg)
			s.addEventLocked(stamp, msg, true)
		} else {
			s.addEventLocked(stamp, fmt.Sprintf("🚶‍♂️ Human/Vehicle detected at %s (not in active zone). Monitoring.", where), true)
		}
	}
	return true
}

func (s *Store) expireZonesLocked(now time.Time) {
	cutoff := now.Add(-ZoneTTL)
	ids := make([]string, 0, len(s.zones))
	for id := range s.zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if s.zones[id].at.Before(cutoff) {
			delete(s.zones, id)
			s.addEventLocked(now.Format(TimestampLayout), fmt.Sprintf("Active Zone at %s has expired.", s.cameras[id].Name), false)
		}
	}
}

func (s *Store) inActiveZoneLocked(pos snapshot.LatLng) bool {
	for _, z := range s.zones {
		if Haversine(pos, z.pos) <= ZoneRadiusKm {
			return true
		}
	}
	return false
}

func (s *Store) addEventLocked(stamp, msg string, threat bool) {
	ev := Event{ID: s.NewID(), Timestamp: stamp, Message: msg, IsThreat: threat}
	s.events = append([]Event{ev}, s.events...)
	if len(s.events) > maxEvents {
		s.events = s.events[:maxEvents]
	}
}

func (s *Store) addAlertLocked(stamp, cameraID, msg string) {
	a := Alert{ID: s.NewID(), Timestamp: stamp, CameraID: cameraID, Message: msg}
	s.alerts = append([]Alert{a}, s.alerts...)
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[:maxAlerts]
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Cameras:     make(map[string]Camera, len(s.cameras)),
		ActiveZones: make(map[string]Zone, len(s.zones)),
		Alerts:      append([]Alert{}, s.alerts...),
		Events:      append([]Event{}, s.events...),
	}
	for id, c := range s.cameras {
		cp := *c
		if c.LastDetection != nil {
			d := *c.LastDetection
			cp.LastDetection = &d
		}
		st.Cameras[id] = cp
	}
	for id, z := range s.zones {
		st.ActiveZones[id] = Zone{Lat: z.pos.Lat, Lon: z.pos.Lon, Timestamp: z.at.Format(TimestampLayout)}
	}
	return st
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b snapshot.LatLng) float64 {
	lat1, lon1 := a.Lat*math.Pi/180, a.Lon*math.Pi/180
	lat2, lon2 := b.Lat*math.Pi/180, b.Lon*math.Pi/180
	dlat, dlon := lat2-lat1, lon2-lon1
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * math.Asin(math.Sqrt(h)) * earthRadiusKm
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
