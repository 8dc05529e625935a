// Package reconcile keeps persistent map entities in step with backend
// snapshots, creating, restyling and removing them through a Surface.
package reconcile

import "github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"

// MarkerStyle is the visual treatment of a camera marker.
type MarkerStyle string

const (
	StyleNormal MarkerStyle = "normal"
	StyleAlert  MarkerStyle = "alert"
)

// DefaultZoneRadius is the zone overlay radius in metres.
const DefaultZoneRadius = 2000.0

// Handle identifies an entity placed on a Surface.
type Handle string

// Surface is the rendering capability the reconciler drives. Popup text is
// HTML limited to <b> and <br>.
type Surface interface {
	// PlaceMarker creates a camera marker.
	PlaceMarker(cameraID string, pos snapshot.LatLng, style MarkerStyle, popup string) (Handle, error)
	// RestyleMarker updates style and popup of an existing marker in place.
	RestyleMarker(h Handle, style MarkerStyle, popup string) error
	// PlaceZone creates a zone overlay.
	PlaceZone(cameraID string, center snapshot.LatLng, radiusMeters float64, popup string) (Handle, error)
	// RemoveZone deletes a zone overlay. After an error the reconciler
	// retries h on every later Apply until it succeeds.
	RemoveZone(h Handle) error
}
