package board

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/mapview"
)

// maxUploadBytes bounds a proxied upload.
const maxUploadBytes = 32 << 20

type server struct {
	b   *Board
	log logger.Module
}

func newServer(b *Board) *server {
	return &server{b: b, log: logger.For("HTTP")}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/test", s.handleTestPage)
	r.Handle("/assets/*", http.StripPrefix("/assets/", newAssetHandler(s.b.cfg.AssetsDir)))
	r.Get("/api/scene", s.handleScene)
	r.Method(http.MethodGet, "/api/ops/stream", mapview.NewStreamHandler(s.b.layer, s.b.bc))
	r.Get("/api/status", s.handleStatus)
	r.Post("/predict", s.handlePredict)
	r.Method(http.MethodGet, "/metrics", s.b.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})

	return r
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *server) handleTestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(testHTML))
}

func (s *server) handleScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.b.layer.Scene())
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"poller":         s.b.poller.Stats(),
		"stream_clients": s.b.bc.Clients(),
		"backend_url":    s.b.cfg.BackendURL,
		"poll_interval":  s.b.cfg.PollInterval.String(),
		"timestamp":      float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

// handlePredict forwards the multipart upload to the backend unchanged and
// relays its answer, whatever the status.
func (s *server) handlePredict(w http.ResponseWriter, r *http.Request) {
	targetURL := strings.TrimRight(s.b.cfg.BackendURL, "/") + "/predict"
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, targetURL, body)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Detection backend unavailable"}, http.StatusBadGateway)
		return
	}
	req.Header.Set("Content-Type", r.Header.Get("Content-Type"))
	req.ContentLength = r.ContentLength

	resp, err := s.b.backend.Do(req)
	if err != nil {
		s.log.Warn("Predict proxy to %s failed: %v", targetURL, err)
		writeJSONWithStatus(w, map[string]any{"error": "Detection backend unavailable"}, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.Debug("Predict relay interrupted: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
