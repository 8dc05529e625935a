// Package surfacetest provides a recording reconcile.Surface for tests.
package surfacetest

import (
	"fmt"
	"sync"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/reconcile"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

// Call is one recorded surface operation.
type Call struct {
	Op       string // "place-marker", "restyle-marker", "place-zone", "remove-zone"
	CameraID string
	Handle   reconcile.Handle
	Style    reconcile.MarkerStyle
	Popup    string
}

// Entity is a live object on the fake surface.
type Entity struct {
	CameraID string
	Pos      snapshot.LatLng
	Radius   float64
	Style    reconcile.MarkerStyle
	Popup    string
}

// Recorder records calls and keeps the set of live entities.
type Recorder struct {
	mu      sync.Mutex
	next    int
	calls   []Call
	markers map[reconcile.Handle]*Entity
	zones   map[reconcile.Handle]*Entity

	// FailPlace makes Place* fail for these camera ids.
	FailPlace map[string]error
	// PanicOn makes Place*/Restyle panic for these camera ids.
	PanicOn map[string]bool
	// FailRemove makes RemoveZone fail while set.
	FailRemove error
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		markers: make(map[reconcile.Handle]*Entity),
		zones:   make(map[reconcile.Handle]*Entity),
	}
}

func (r *Recorder) handle(prefix string) reconcile.Handle {
	r.next++
	return reconcile.Handle(fmt.Sprintf("%s-%d", prefix, r.next))
}

func (r *Recorder) PlaceMarker(id string, pos snapshot.LatLng, style reconcile.MarkerStyle, popup string) (reconcile.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PanicOn[id] {
		panic("surface exploded on " + id)
	}
	if err := r.FailPlace[id]; err != nil {
		return "", err
	}
	h := r.handle("marker")
	r.markers[h] = &Entity{CameraID: id, Pos: pos, Style: style, Popup: popup}
	r.calls = append(r.calls, Call{Op: "place-marker", CameraID: id, Handle: h, Style: style, Popup: popup})
	return h, nil
}

func (r *Recorder) RestyleMarker(h reconcile.Handle, style reconcile.MarkerStyle, popup string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markers[h]
	if !ok {
		return fmt.Errorf("unknown marker %s", h)
	}
	if r.PanicOn[m.CameraID] {
		panic("surface exploded on " + m.CameraID)
	}
	m.Style, m.Popup = style, popup
	r.calls = append(r.calls, Call{Op: "restyle-marker", CameraID: m.CameraID, Handle: h, Style: style, Popup: popup})
	return nil
}

func (r *Recorder) PlaceZone(id string, center snapshot.LatLng, radius float64, popup string) (reconcile.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailPlace[id]; err != nil {
		return "", err
	}
	h := r.handle("zone")
	r.zones[h] = &Entity{CameraID: id, Pos: center, Radius: radius, Popup: popup}
	r.calls = append(r.calls, Call{Op: "place-zone", CameraID: id, Handle: h, Popup: popup})
	return h, nil
}

func (r *Recorder) RemoveZone(h reconcile.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	z, ok := r.zones[h]
	if !ok {
		return fmt.Errorf("unknown zone %s", h)
	}
	if r.FailRemove != nil {
		return r.FailRemove
	}
	delete(r.zones, h)
	r.calls = append(r.calls, Call{Op: "remove-zone", CameraID: z.CameraID, Handle: h})
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset forgets recorded calls but keeps live entities.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// Marker returns a copy of the live marker for h.
func (r *Recorder) Marker(h reconcile.Handle) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markers[h]
	if !ok {
		return Entity{}, false
	}
	return *m, true
}

// Zone returns a copy of the live zone for h.
func (r *Recorder) Zone(h reconcile.Handle) (Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	z, ok := r.zones[h]
	if !ok {
		return Entity{}, false
	}
	return *z, true
}

// Counts returns the number of live markers and zones.
func (r *Recorder) Counts() (markers, zones int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers), len(r.zones)
}
