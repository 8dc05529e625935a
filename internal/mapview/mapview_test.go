package mapview

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/feed"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/reconcile"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

func drain(ch <-chan *SerializedOp) []Op {
	var ops []Op
	for {
		select {
		case s := <-ch:
			var op Op
			if err := json.Unmarshal(s.JSONData, &op); err != nil {
				panic(err)
			}
			ops = append(ops, op)
		default:
			return ops
		}
	}
}

func TestLayerPublishesOps(t *testing.T) {
	bc := NewBroadcaster(16)
	layer := NewLayer(bc)
	_, ch := bc.Subscribe()

	h, err := layer.PlaceMarker("CAM001", snapshot.LatLng{Lat: 12.97, Lon: 77.59}, reconcile.StyleNormal,
		"<b>Koramangala</b><br>CAM001<br>Status: OK<script>alert(1)</script>")
	require.NoError(t, err)
	require.NoError(t, layer.RestyleMarker(h, reconcile.StyleNormal, "<b>Koramangala</b><br>CAM001<br>Status: OK"))
	require.NoError(t, layer.RestyleMarker(h, reconcile.StyleAlert, "<b>Koramangala</b><br>CAM001<br>Last seen: human at 8:00:00 AM"))

	z, err := layer.PlaceZone("CAM001", snapshot.LatLng{Lat: 12.97, Lon: 77.59}, 2000, "Active Zone around Koramangala")
	require.NoError(t, err)
	require.NoError(t, layer.RemoveZone(z))
	assert.Error(t, layer.RemoveZone(z))
	assert.Error(t, layer.RestyleMarker("nope", reconcile.StyleAlert, ""))

	ops := drain(ch)
	require.Len(t, ops, 4, "unchanged restyle must not publish")
	kinds := []OpKind{ops[0].Kind, ops[1].Kind, ops[2].Kind, ops[3].Kind}
	assert.Equal(t, []OpKind{OpMarkerAdd, OpMarkerUpdate, OpZoneAdd, OpZoneRemove}, kinds)
	for i, op := range ops {
		assert.Equal(t, uint64(i+1), op.Seq)
	}
	assert.NotContains(t, ops[0].Popup, "script")
	assert.Contains(t, ops[0].Popup, "<b>Koramangala</b>")
	assert.Equal(t, string(reconcile.StyleAlert), ops[1].Style)
	require.NotNil(t, ops[2].Radius)
	assert.Equal(t, 2000.0, *ops[2].Radius)
	assert.Nil(t, ops[1].Lat, "updates carry no position")

	scene := layer.Scene()
	assert.Equal(t, uint64(4), scene.Seq)
	require.Len(t, scene.Markers, 1)
	assert.Equal(t, "alert", scene.Markers[0].Style)
	assert.Empty(t, scene.Zones)
}

func TestLayerFeedsPublishOnlyOnChange(t *testing.T) {
	bc := NewBroadcaster(16)
	layer := NewLayer(bc)
	_, ch := bc.Subscribe()

	snap := &snapshot.Snapshot{Events: []snapshot.Event{{Message: "Human", IsThreat: true}}}
	feed.Render(layer, snap, time.UTC)
	feed.Render(layer, snap, time.UTC)

	ops := drain(ch)
	require.Len(t, ops, 2)
	assert.Equal(t, OpAlerts, ops[0].Kind)
	assert.Contains(t, ops[0].HTML, "No high-priority alerts at the moment.")
	assert.Equal(t, OpEvents, ops[1].Kind)
	assert.Contains(t, ops[1].HTML, `class="event-threat"`)
}

func TestProtobufEncodingRoundTrips(t *testing.T) {
	op := Op{Seq: 7, Kind: OpZoneAdd, Handle: "h", CameraID: "CAM002", Lat: num(12.9), Lon: num(77.5), Radius: num(2000), Popup: "Active Zone"}
	s, err := serialize(op)
	require.NoError(t, err)
	got, err := DecodeProtobufOp(s.ProtobufData)
	require.NoError(t, err)
	assert.Equal(t, op, got)
}

func TestAddOpsCarryZeroCoordinates(t *testing.T) {
	bc := NewBroadcaster(16)
	layer := NewLayer(bc)
	_, ch := bc.Subscribe()

	_, err := layer.PlaceMarker("CAM_EQ", snapshot.LatLng{Lat: 0, Lon: 9.5}, reconcile.StyleNormal, "equator")
	require.NoError(t, err)
	_, err = layer.PlaceZone("CAM_GW", snapshot.LatLng{Lat: 51.5, Lon: 0}, 2000, "greenwich")
	require.NoError(t, err)

	var raw []*SerializedOp
	for len(raw) < 2 {
		raw = append(raw, <-ch)
	}

	wants := []struct {
		lat, lon float64
		keys     []string
	}{
		{0, 9.5, []string{"lat", "lon"}},
		{51.5, 0, []string{"lat", "lon", "radius"}},
	}
	for i, want := range wants {
		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw[i].JSONData, &fields))
		for _, k := range want.keys {
			assert.Contains(t, fields, k, "json op %d", i)
		}

		for _, op := range []Op{decodeJSON(t, raw[i].JSONData), decodeProtobuf(t, raw[i].ProtobufData)} {
			require.NotNil(t, op.Lat)
			require.NotNil(t, op.Lon)
			assert.Equal(t, want.lat, *op.Lat)
			assert.Equal(t, want.lon, *op.Lon)
		}
	}
}

func decodeJSON(t *testing.T, data []byte) Op {
	t.Helper()
	var op Op
	require.NoError(t, json.Unmarshal(data, &op))
	return op
}

func decodeProtobuf(t *testing.T, data []byte) Op {
	t.Helper()
	op, err := DecodeProtobufOp(data)
	require.NoError(t, err)
	return op
}

func TestSlowClientIsMarkedDropped(t *testing.T) {
	bc := NewBroadcaster(1)
	layer := NewLayer(bc)
	id, _ := bc.Subscribe()
	var clients []int
	bc.OnClientsChanged = func(n int) { clients = append(clients, n) }

	layer.SetAlerts("<p>a</p>")
	assert.False(t, bc.Dropped(id))
	layer.SetAlerts("<p>b</p>")
	assert.True(t, bc.Dropped(id))
	assert.False(t, bc.Dropped(id), "flag clears once read")

	bc.Unsubscribe(id)
	assert.Equal(t, 0, bc.Clients())
	assert.Equal(t, []int{0}, clients)
}

func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamSendsSceneThenOps(t *testing.T) {
	bc := NewBroadcaster(16)
	layer := NewLayer(bc)
	_, err := layer.PlaceMarker("CAM001", snapshot.LatLng{Lat: 1, Lon: 2}, reconcile.StyleNormal, "one")
	require.NoError(t, err)

	srv := httptest.NewServer(NewStreamHandler(layer, bc))
	defer srv.Close()

	for _, proto := range []bool{false, true} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		if proto {
			req.Header.Set("Accept", "application/protobuf")
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		reader := bufio.NewReader(resp.Body)

		name, data := readEvent(t, reader)
		require.Equal(t, "scene", name)
		var scene Scene
		require.NoError(t, json.Unmarshal([]byte(data), &scene))
		require.Len(t, scene.Markers, 1)

		_, err = layer.PlaceZone("CAM001", snapshot.LatLng{Lat: 1, Lon: 2}, 2000, "zone")
		require.NoError(t, err)

		name, data = readEvent(t, reader)
		require.Equal(t, "op", name)
		var op Op
		if proto {
			op, err = DecodeProtobufOp([]byte(data))
			require.NoError(t, err)
		} else {
			require.NoError(t, json.Unmarshal([]byte(data), &op))
		}
		assert.Equal(t, OpZoneAdd, op.Kind)
		assert.Equal(t, scene.Seq+1, op.Seq)

		cancel()
		resp.Body.Close()
	}
}
