// Package mapview is the live map surface. It keeps the current scene and
// streams every change to connected browsers, which replay it on Leaflet.
package mapview

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// OpKind names a scene change.
type OpKind string

const (
	OpMarkerAdd    OpKind = "marker.add"
	OpMarkerUpdate OpKind = "marker.update"
	OpZoneAdd      OpKind = "zone.add"
	OpZoneRemove   OpKind = "zone.remove"
	OpAlerts       OpKind = "feed.alerts"
	OpEvents       OpKind = "feed.events"
)

// Op is one scene change. Seq increases by one per op.
//
// Lat, Lon and Radius are set only on add ops. They are pointers so a
// coordinate of 0 still goes on the wire.
type Op struct {
	Seq      uint64   `json:"seq"`
	Kind     OpKind   `json:"kind"`
	Handle   string   `json:"handle,omitempty"`
	CameraID string   `json:"camera_id,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Radius   *float64 `json:"radius,omitempty"`
	Style    string   `json:"style,omitempty"`
	Popup    string   `json:"popup,omitempty"`
	HTML     string   `json:"html,omitempty"`
}

func num(v float64) *float64 { return &v }

// MarkerView is a marker in the current scene.
type MarkerView struct {
	Handle   string  `json:"handle"`
	CameraID string  `json:"camera_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Style    string  `json:"style"`
	Popup    string  `json:"popup"`
}

// ZoneView is a zone overlay in the current scene.
type ZoneView struct {
	Handle   string  `json:"handle"`
	CameraID string  `json:"camera_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Radius   float64 `json:"radius"`
	Popup    string  `json:"popup"`
}

// Scene is the full board state at Seq. A browser loads it, then applies
// ops with a greater Seq.
type Scene struct {
	Seq     uint64       `json:"seq"`
	Markers []MarkerView `json:"markers"`
	Zones   []ZoneView   `json:"zones"`
	Alerts  string       `json:"alerts_html"`
	Events  string       `json:"events_html"`
}

// SerializedOp holds an op pre-encoded for both stream formats so fan-out
// does not re-encode per client.
type SerializedOp struct {
	Seq          uint64
	JSONData     []byte
	ProtobufData []byte // base64 of a google.protobuf.Struct
}

func serialize(op Op) (*SerializedOp, error) {
	jsonData, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}

	st, err := structpb.NewStruct(op.fields())
	if err != nil {
		return nil, fmt.Errorf("structpb: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protobuf: %w", err)
	}

	return &SerializedOp{
		Seq:          op.Seq,
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// fields mirrors the JSON encoding, omitting empty values the same way.
func (op Op) fields() map[string]any {
	m := map[string]any{
		"seq":  float64(op.Seq),
		"kind": string(op.Kind),
	}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	putNum := func(k string, v *float64) {
		if v != nil {
			m[k] = *v
		}
	}
	put("handle", op.Handle)
	put("camera_id", op.CameraID)
	put("style", op.Style)
	put("popup", op.Popup)
	put("html", op.HTML)
	putNum("lat", op.Lat)
	putNum("lon", op.Lon)
	putNum("radius", op.Radius)
	return m
}

// DecodeProtobufOp reverses the protobuf stream encoding. Used by Go
// clients and tests.
func DecodeProtobufOp(data []byte) (Op, error) {
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return Op{}, err
	}
	var st structpb.Struct
	if err := proto.Unmarshal(raw, &st); err != nil {
		return Op{}, err
	}
	buf, err := json.Marshal(st.AsMap())
	if err != nil {
		return Op{}, err
	}
	var op Op
	if err := json.Unmarshal(buf, &op); err != nil {
		return Op{}, err
	}
	return op, nil
}
