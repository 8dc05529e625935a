package stateserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/detect"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/timeutil"
)

var t0 = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func newStore() (*Store, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(t0)
	s := NewStore(DefaultCameras, clock)
	n := 0
	s.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s, clock
}

func TestHaversine(t *testing.T) {
	koramangala := snapshot.LatLng{Lat: 12.9716, Lon: 77.5946}
	assert.InDelta(t, 0.854, Haversine(koramangala, snapshot.LatLng{Lat: 12.9791, Lon: 77.5929}), 0.001)
	assert.InDelta(t, 7.930, Haversine(koramangala, snapshot.LatLng{Lat: 13.0356, Lon: 77.5623}), 0.001)
	assert.Zero(t, Haversine(koramangala, koramangala))
}

func TestAnimalOpensZone(t *testing.T) {
	s, _ := newStore()
	require.True(t, s.ProcessEvent("CAM003", snapshot.DetectionElephant))

	st := s.State()
	require.Contains(t, st.ActiveZones, "CAM003")
	assert.Equal(t, Zone{Lat: 12.9515, Lon: 77.6322, Timestamp: "2026-10-15T08:00:00"}, st.ActiveZones["CAM003"])
	assert.Equal(t, &Detection{Type: "elephant", Timestamp: "2026-10-15T08:00:00"}, st.Cameras["CAM003"].LastDetection)
	require.Len(t, st.Events, 1)
	assert.Equal(t, "🐾 Elephant spotted at Bellandur Wetlands (CAM003). Area is now an Active Zone.", st.Events[0].Message)
	assert.False(t, st.Events[0].IsThreat)
	assert.Empty(t, st.Alerts)
}

func TestHumanNearZoneRaisesAlert(t *testing.T) {
	s, _ := newStore()
	s.ProcessEvent("CAM001", snapshot.DetectionTiger)

	// CAM002 is under a kilometre from CAM001.
	s.ProcessEvent("CAM002", snapshot.DetectionHuman)
	// CAM004 is almost 8 km away.
	s.ProcessEvent("CAM004", snapshot.DetectionVehicle)

	st := s.State()
	require.Len(t, st.Alerts, 1)
	assert.Equal(t, "CAM002", st.Alerts[0].CameraID)
	assert.Equal(t, "🚨 THREAT: Human/Vehicle detected at Cubbon Park Outskirts (CAM002) inside an active animal zone. Potential poacher.", st.Alerts[0].Message)

	require.Len(t, st.Events, 3)
	assert.Contains(t, st.Events[0].Message, "Hebbal Lake North (CAM004) (not in active zone)")
	assert.True(t, st.Events[0].IsThreat)
	assert.Equal(t, st.Alerts[0].Message, st.Events[1].Message)
	assert.True(t, st.Events[1].IsThreat)
}

func TestZonesExpireAfterAnHour(t *testing.T) {
	s, clock := newStore()
	s.ProcessEvent("CAM001", snapshot.DetectionWolf)

	clock.Advance(59 * time.Minute)
	s.ProcessEvent("CAM004", snapshot.DetectionHuman)
	assert.Contains(t, s.State().ActiveZones, "CAM001")

	clock.Advance(2 * time.Minute)
	s.ProcessEvent("CAM002", snapshot.DetectionHuman)

	st := s.State()
	assert.Empty(t, st.ActiveZones)
	assert.Empty(t, st.Alerts, "zone expired before the human was seen")
	require.Len(t, st.Events, 4)
	assert.Equal(t, "Active Zone at Koramangala Reserve has expired.", st.Events[1].Message)
}

func TestIgnoredEvents(t *testing.T) {
	s, _ := newStore()
	assert.False(t, s.ProcessEvent("CAM999", snapshot.DetectionTiger))
	assert.False(t, s.ProcessEvent("", snapshot.DetectionTiger))
	assert.False(t, s.ProcessEvent("CAM001", ""))
	assert.Empty(t, s.State().Events)

	// Unknown detection types update the camera but raise nothing.
	assert.True(t, s.ProcessEvent("CAM001", "bird"))
	st := s.State()
	assert.Equal(t, "bird", st.Cameras["CAM001"].LastDetection.Type)
	assert.Empty(t, st.Events)
}

func TestFeedsAreCapped(t *testing.T) {
	s, _ := newStore()
	s.ProcessEvent("CAM001", snapshot.DetectionLeopard)
	for i := 0; i < 15; i++ {
		s.ProcessEvent("CAM002", snapshot.DetectionHuman)
	}
	st := s.State()
	assert.Len(t, st.Alerts, maxAlerts)
	assert.Len(t, st.Events, maxEvents)
	assert.Equal(t, "id-31", st.Events[0].ID, "newest first")
}

type fakePredictor struct {
	got string
	err error
}

func (f *fakePredictor) Detect(_ context.Context, filename string, r io.Reader) (*detect.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(r)
	f.got = filename + ":" + string(data)
	return &detect.Result{Image: []byte("annotated"), Format: "jpeg"}, nil
}

func upload(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(detect.FieldName, filename)
	require.NoError(t, err)
	_, _ = fw.Write([]byte(content))
	require.NoError(t, mw.Close())
	resp, err := http.Post(url+detect.PredictPath, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestHTTPStateRoundTripsThroughBoardDecoder(t *testing.T) {
	s, _ := newStore()
	srv := httptest.NewServer(NewServer(s, nil).Handler())
	defer srv.Close()

	for _, body := range []string{
		`{"camera_id": "CAM001", "detection": "elephant"}`,
		`{"camera_id": "CAM002", "detection": "human"}`,
	} {
		resp, err := http.Post(srv.URL+"/api/event", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Post(srv.URL+"/api/event", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	snap, err := snapshot.NewFetcher(srv.URL, nil, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Rejected)
	require.Len(t, snap.Cameras, 4)
	assert.True(t, snap.Cameras["CAM002"].LastDetection.Type.IsThreat())
	assert.Nil(t, snap.Cameras["CAM003"].LastDetection)
	require.Contains(t, snap.ActiveZones, "CAM001")
	assert.Equal(t, "8:00:00 AM", snap.ActiveZones["CAM001"].Timestamp.LocalTime(time.UTC))
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "CAM002", snap.Alerts[0].CameraID)
}

func TestPredictEndpoint(t *testing.T) {
	s, _ := newStore()

	srv := httptest.NewServer(NewServer(s, nil).Handler())
	resp := upload(t, srv.URL, "a.jpg", "x")
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	srv.Close()

	fake := &fakePredictor{}
	srv = httptest.NewServer(NewServer(s, fake).Handler())
	defer srv.Close()

	resp = upload(t, srv.URL, "tiger.jpg", "pixels")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "annotated", string(body))
	assert.Equal(t, "tiger.jpg:pixels", fake.got)

	resp, err := http.Post(srv.URL+detect.PredictPath, "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file part\n", string(body))

	fake.err = &detect.RemoteError{Status: http.StatusUnprocessableEntity, Message: "unreadable image"}
	resp = upload(t, srv.URL, "bad.jpg", "x")
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "unreadable image\n", string(body))
}
