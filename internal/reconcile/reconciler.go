package reconcile

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

var (
	// ErrMissingPosition marks an entity without usable coordinates.
	ErrMissingPosition = errors.New("missing lat/lon")
	// ErrDanglingCamera marks a zone whose camera is not in the snapshot.
	ErrDanglingCamera = errors.New("zone references unknown camera")
	// ErrMalformedEntry marks an entry dropped while decoding the snapshot.
	ErrMalformedEntry = errors.New("malformed entry")
)

// Fault is an entity-local failure. The rest of the cycle still applies.
type Fault struct {
	Kind string // "camera", "zone", "alert", "event"
	ID   string
	Err  error
}

func (f Fault) Error() string { return fmt.Sprintf("%s %s: %v", f.Kind, f.ID, f.Err) }
func (f Fault) Unwrap() error { return f.Err }

// Result summarises one Apply.
type Result struct {
	MarkersCreated int
	MarkersUpdated int
	ZonesCreated   int
	ZonesRemoved   int
	Skipped        []Fault
}

// Options tunes a Reconciler.
type Options struct {
	// Location renders detection times. Defaults to time.Local.
	Location *time.Location
	// ZoneRadius is the overlay radius in metres. Defaults to DefaultZoneRadius.
	ZoneRadius float64
	Log        logger.Module
}

// Reconciler owns the marker and zone registries and is their only writer.
// It is not safe for concurrent use.
type Reconciler struct {
	surface Surface
	markers *Registry
	zones   *Registry
	loc     *time.Location
	radius  float64
	log     logger.Module

	// orphans are overlays whose removal failed. They are out of the zone
	// registry and retried at the start of every Apply.
	orphans map[Handle]string
}

// New returns a Reconciler drawing on surface.
func New(surface Surface, opts Options) *Reconciler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ZoneRadius <= 0 {
		opts.ZoneRadius = DefaultZoneRadius
	}
	if opts.Log.Name() == "" {
		opts.Log = logger.For("Reconciler")
	}
	return &Reconciler{
		surface: surface,
		markers: newRegistry(),
		zones:   newRegistry(),
		loc:     opts.Location,
		radius:  opts.ZoneRadius,
		log:     opts.Log,
		orphans: make(map[Handle]string),
	}
}

// Markers returns the camera marker registry.
func (r *Reconciler) Markers() *Registry { return r.markers }

// Zones returns the zone overlay registry.
func (r *Reconciler) Zones() *Registry { return r.zones }

// Apply brings the surface in line with snap.
func (r *Reconciler) Apply(snap *snapshot.Snapshot) Result {
	var res Result
	for _, rej := range snap.Rejected {
		res.Skipped = append(res.Skipped, Fault{Kind: rej.Kind, ID: rej.Key, Err: fmt.Errorf("%w: %v", ErrMalformedEntry, rej.Err)})
	}

	for _, id := range snap.SortedCameraIDs() {
		cam := snap.Cameras[id]
		r.guard(&res, "camera", id, func() error { return r.applyCamera(&res, id, cam) })
	}

	for _, h := range r.PendingRemovals() {
		r.removeOverlay(&res, r.orphans[h], h)
	}

	for _, id := range r.zones.IDs() {
		if _, active := snap.ActiveZones[id]; active {
			continue
		}
		h, _ := r.zones.get(id)
		r.zones.drop(id)
		r.removeOverlay(&res, id, h)
	}

	for _, id := range snap.SortedZoneIDs() {
		if _, exists := r.zones.get(id); exists {
			continue
		}
		zone := snap.ActiveZones[id]
		r.guard(&res, "zone", id, func() error { return r.placeZone(&res, snap, id, zone) })
	}

	for _, f := range res.Skipped {
		r.log.Warn("Skipped %v", f)
	}
	return res
}

func (r *Reconciler) applyCamera(res *Result, id string, cam snapshot.Camera) error {
	style := StyleFor(cam)
	popup := CameraPopup(id, cam, r.loc)

	if h, ok := r.markers.get(id); ok {
		if err := r.surface.RestyleMarker(h, style, popup); err != nil {
			return err
		}
		res.MarkersUpdated++
		return nil
	}

	pos, ok := cam.Position()
	if !ok {
		return ErrMissingPosition
	}
	h, err := r.surface.PlaceMarker(id, pos, style, popup)
	if err != nil {
		return err
	}
	r.markers.put(id, h)
	res.MarkersCreated++
	r.log.Debug("Placed marker %s at %.4f,%.4f", id, pos.Lat, pos.Lon)
	return nil
}

// removeOverlay takes h off the surface. A failed removal parks h in
// orphans so a later Apply retries it.
func (r *Reconciler) removeOverlay(res *Result, id string, h Handle) {
	removed := false
	r.guard(res, "zone", id, func() error {
		if err := r.surface.RemoveZone(h); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if removed {
		delete(r.orphans, h)
		res.ZonesRemoved++
		return
	}
	r.orphans[h] = id
}

// PendingRemovals returns the overlays still waiting to be removed.
func (r *Reconciler) PendingRemovals() []Handle {
	hs := make([]Handle, 0, len(r.orphans))
	for h := range r.orphans {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

func (r *Reconciler) placeZone(res *Result, snap *snapshot.Snapshot, id string, zone snapshot.Zone) error {
	cam, ok := snap.Cameras[id]
	if !ok {
		return ErrDanglingCamera
	}
	center, ok := zone.Center()
	if !ok {
		return ErrMissingPosition
	}
	h, err := r.surface.PlaceZone(id, center, r.radius, ZonePopup(cam))
	if err != nil {
		return err
	}
	r.zones.put(id, h)
	res.ZonesCreated++
	r.log.Debug("Placed zone %s", id)
	return nil
}

// guard runs one entity step, turning errors and panics into a Fault.
func (r *Reconciler) guard(res *Result, kind, id string, step func() error) {
	defer func() {
		if p := recover(); p != nil {
			res.Skipped = append(res.Skipped, Fault{Kind: kind, ID: id, Err: fmt.Errorf("panic: %v", p)})
		}
	}()
	if err := step(); err != nil {
		res.Skipped = append(res.Skipped, Fault{Kind: kind, ID: id, Err: err})
	}
}

// StyleFor classifies a camera by its last detection.
func StyleFor(cam snapshot.Camera) MarkerStyle {
	if cam.LastDetection != nil && cam.LastDetection.Type.IsThreat() {
		return StyleAlert
	}
	return StyleNormal
}

// CameraPopup composes the marker popup.
func CameraPopup(id string, cam snapshot.Camera, loc *time.Location) string {
	head := "<b>" + html.EscapeString(cam.Name) + "</b><br>" + html.EscapeString(id) + "<br>"
	if cam.LastDetection == nil {
		return head + "Status: OK"
	}
	det := cam.LastDetection
	return head + "Last seen: " + html.EscapeString(string(det.Type)) + " at " + det.Timestamp.LocalTime(loc)
}

// ZonePopup composes the zone overlay popup.
func ZonePopup(cam snapshot.Camera) string {
	return "Active Zone around " + html.EscapeString(cam.Name)
}
