package mapview

import (
	"fmt"
	"html/template"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/reconcile"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

// Layer is the in-memory scene behind the browser map. It implements
// reconcile.Surface and feed.Sink. Markup leaving the Layer is sanitised,
// since browsers assign it to innerHTML.
type Layer struct {
	mu      sync.Mutex
	seq     uint64
	markers map[reconcile.Handle]*MarkerView
	zones   map[reconcile.Handle]*ZoneView
	alerts  string
	events  string

	popupPolicy *bluemonday.Policy
	feedPolicy  *bluemonday.Policy
	bc          *Broadcaster
	log         logger.Module
}

// NewLayer returns an empty scene publishing to bc.
func NewLayer(bc *Broadcaster) *Layer {
	popup := bluemonday.NewPolicy()
	popup.AllowElements("b", "br")

	feed := bluemonday.NewPolicy()
	feed.AllowElements("div", "p", "span", "li")
	feed.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z-]*$`)).OnElements("div", "p", "li")

	return &Layer{
		markers:     make(map[reconcile.Handle]*MarkerView),
		zones:       make(map[reconcile.Handle]*ZoneView),
		popupPolicy: popup,
		feedPolicy:  feed,
		bc:          bc,
		log:         logger.For("MapLayer"),
	}
}

func (l *Layer) PlaceMarker(cameraID string, pos snapshot.LatLng, style reconcile.MarkerStyle, popup string) (reconcile.Handle, error) {
	h := reconcile.Handle(uuid.NewString())
	m := &MarkerView{
		Handle:   string(h),
		CameraID: cameraID,
		Lat:      pos.Lat,
		Lon:      pos.Lon,
		Style:    string(style),
		Popup:    l.popupPolicy.Sanitize(popup),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers[h] = m
	l.publishLocked(Op{Kind: OpMarkerAdd, Handle: m.Handle, CameraID: cameraID, Lat: num(m.Lat), Lon: num(m.Lon), Style: m.Style, Popup: m.Popup})
	return h, nil
}

func (l *Layer) RestyleMarker(h reconcile.Handle, style reconcile.MarkerStyle, popup string) error {
	clean := l.popupPolicy.Sanitize(popup)

	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.markers[h]
	if !ok {
		return fmt.Errorf("marker %s not on the map", h)
	}
	if m.Style == string(style) && m.Popup == clean {
		return nil
	}
	m.Style, m.Popup = string(style), clean
	l.publishLocked(Op{Kind: OpMarkerUpdate, Handle: m.Handle, CameraID: m.CameraID, Style: m.Style, Popup: m.Popup})
	return nil
}

func (l *Layer) PlaceZone(cameraID string, center snapshot.LatLng, radius float64, popup string) (reconcile.Handle, error) {
	h := reconcile.Handle(uuid.NewString())
	z := &ZoneView{
		Handle:   string(h),
		CameraID: cameraID,
		Lat:      center.Lat,
		Lon:      center.Lon,
		Radius:   radius,
		Popup:    l.popupPolicy.Sanitize(popup),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.zones[h] = z
	l.publishLocked(Op{Kind: OpZoneAdd, Handle: z.Handle, CameraID: cameraID, Lat: num(z.Lat), Lon: num(z.Lon), Radius: num(z.Radius), Popup: z.Popup})
	return h, nil
}

func (l *Layer) RemoveZone(h reconcile.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	z, ok := l.zones[h]
	if !ok {
		return fmt.Errorf("zone %s not on the map", h)
	}
	delete(l.zones, h)
	l.publishLocked(Op{Kind: OpZoneRemove, Handle: z.Handle, CameraID: z.CameraID})
	return nil
}

// SetAlerts replaces the alert feed.
func (l *Layer) SetAlerts(html template.HTML) {
	l.setFeed(&l.alerts, OpAlerts, html)
}

// SetEvents replaces the event feed.
func (l *Layer) SetEvents(html template.HTML) {
	l.setFeed(&l.events, OpEvents, html)
}

func (l *Layer) setFeed(dst *string, kind OpKind, html template.HTML) {
	clean := l.feedPolicy.Sanitize(string(html))

	l.mu.Lock()
	defer l.mu.Unlock()
	if *dst == clean {
		return
	}
	*dst = clean
	l.publishLocked(Op{Kind: kind, HTML: clean})
}

// publishLocked stamps op with the next sequence number and broadcasts it.
// Holding mu keeps broadcast order equal to Seq order.
func (l *Layer) publishLocked(op Op) {
	l.seq++
	op.Seq = l.seq
	if l.bc == nil {
		return
	}
	data, err := serialize(op)
	if err != nil {
		l.log.Error("Serialize op %d (%s): %v", op.Seq, op.Kind, err)
		return
	}
	l.bc.broadcast(data)
}

// Scene returns a copy of the current scene.
func (l *Layer) Scene() Scene {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Scene{
		Seq:     l.seq,
		Markers: make([]MarkerView, 0, len(l.markers)),
		Zones:   make([]ZoneView, 0, len(l.zones)),
		Alerts:  l.alerts,
		Events:  l.events,
	}
	for _, m := range l.markers {
		s.Markers = append(s.Markers, *m)
	}
	for _, z := range l.zones {
		s.Zones = append(s.Zones, *z)
	}
	sort.Slice(s.Markers, func(i, j int) bool { return s.Markers[i].CameraID < s.Markers[j].CameraID })
	sort.Slice(s.Zones, func(i, j int) bool { return s.Zones[i].CameraID < s.Zones[j].CameraID })
	return s
}
