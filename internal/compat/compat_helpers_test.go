// Package compat holds live contract tests. They run against a real backend
// (COMPAT_BASE_URL) and board (COMPAT_BOARD_URL) and skip when either is
// unreachable.
package compat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const (
	defaultBackendURL     = "http://localhost:5000"
	defaultBoardURL       = "http://localhost:8080"
	defaultRequestTimeout = 2 * time.Second
)

type liveClient struct {
	baseURL string
	client  *http.Client
}

func newClient(t *testing.T, env, fallback, healthPath string) *liveClient {
	t.Helper()
	baseURL := strings.TrimRight(os.Getenv(env), "/")
	if baseURL == "" {
		baseURL = fallback
	}
	client := &http.Client{Timeout: defaultRequestTimeout}

	if !isReachable(client, baseURL+healthPath) {
		t.Skipf("server not reachable at %s (set %s to run)", baseURL, env)
	}
	return &liveClient{baseURL: baseURL, client: client}
}

func newBackendClient(t *testing.T) *liveClient {
	t.Helper()
	return newClient(t, "COMPAT_BASE_URL", defaultBackendURL, "/api/get_state")
}

func newBoardClient(t *testing.T) *liveClient {
	t.Helper()
	return newClient(t, "COMPAT_BOARD_URL", defaultBoardURL, "/healthz")
}

func isReachable(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func (c *liveClient) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, body
}

func (c *liveClient) post(t *testing.T, path, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, out
}

func (c *liveClient) postJSON(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return c.post(t, path, "application/json", data)
}

// readSSEEvent returns the first complete event on the stream at url.
func readSSEEvent(url string, timeout time.Duration) (string, http.Header, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 256)
	for {
		n, readErr := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			if idx := bytes.Index(buf, []byte("\n\n")); idx >= 0 {
				return string(buf[:idx]), resp.Header, nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return "", nil, fmt.Errorf("sse stream closed before event")
			}
			return "", nil, fmt.Errorf("read sse: %w", readErr)
		}
	}
}

func sseField(event, name string) string {
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, name+":") {
			return strings.TrimSpace(strings.TrimPrefix(line, name+":"))
		}
	}
	return ""
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireBool(t *testing.T, value any, field string) bool {
	t.Helper()
	b, ok := value.(bool)
	if !ok {
		t.Fatalf("expected %s to be bool, got %T", field, value)
	}
	return b
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func requireSlice(t *testing.T, value any, field string) []any {
	t.Helper()
	s, ok := value.([]any)
	if !ok {
		t.Fatalf("expected %s to be array, got %T", field, value)
	}
	return s
}

func assertStatePayload(t *testing.T, payload map[string]any) {
	t.Helper()
	cameras := requireMap(t, payload["cameras"], "cameras")
	for id, raw := range cameras {
		cam := requireMap(t, raw, "cameras."+id)
		requireString(t, cam["name"], "cameras."+id+".name")
		requireNumber(t, cam["lat"], "cameras."+id+".lat")
		requireNumber(t, cam["lon"], "cameras."+id+".lon")
		if cam["last_detection"] != nil {
			det := requireMap(t, cam["last_detection"], "cameras."+id+".last_detection")
			requireString(t, det["type"], "last_detection.type")
			requireString(t, det["timestamp"], "last_detection.timestamp")
		}
	}

	zones := requireMap(t, payload["active_zones"], "active_zones")
	for id, raw := range zones {
		z := requireMap(t, raw, "active_zones."+id)
		requireNumber(t, z["lat"], "active_zones."+id+".lat")
		requireNumber(t, z["lon"], "active_zones."+id+".lon")
		requireString(t, z["timestamp"], "active_zones."+id+".timestamp")
		if _, ok := cameras[id]; !ok {
			t.Fatalf("active zone %s has no camera", id)
		}
	}

	for i, raw := range requireSlice(t, payload["alerts"], "alerts") {
		a := requireMap(t, raw, fmt.Sprintf("alerts[%d]", i))
		requireString(t, a["message"], "alerts.message")
		requireString(t, a["timestamp"], "alerts.timestamp")
		requireString(t, a["camera_id"], "alerts.camera_id")
	}
	for i, raw := range requireSlice(t, payload["events"], "events") {
		e := requireMap(t, raw, fmt.Sprintf("events[%d]", i))
		requireString(t, e["message"], "events.message")
		requireString(t, e["timestamp"], "events.timestamp")
		requireBool(t, e["is_threat"], "events.is_threat")
	}
}
