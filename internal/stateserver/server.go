package stateserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/detect"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

// maxUploadBytes bounds one /predict upload.
const maxUploadBytes = 32 << 20

// Predictor annotates an uploaded image. *detect.Client satisfies it, so a
// separate model server can be plugged in.
type Predictor interface {
	Detect(ctx context.Context, filename string, r io.Reader) (*detect.Result, error)
}

// EventRequest is the body of POST /api/event.
type EventRequest struct {
	CameraID  string                 `json:"camera_id"`
	Detection snapshot.DetectionType `json:"detection"`
}

// Server exposes a Store over HTTP.
type Server struct {
	store     *Store
	predictor Predictor
	log       logger.Module
}

// NewServer returns a server over store. predictor may be nil.
func NewServer(store *Store, predictor Predictor) *Server {
	return &Server{store: store, predictor: predictor, log: logger.For("StateServer")}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(snapshot.StatePath, s.handleGetState)
	r.Post("/api/event", s.handleEvent)
	r.Post(detect.PredictPath, s.handlePredict)
	return r
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.State())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid event data"})
		return
	}
	if s.store.ProcessEvent(req.CameraID, req.Detection) {
		s.log.Info("Event %s at %s", req.Detection, req.CameraID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile(detect.FieldName)
	if err != nil {
		http.Error(w, "No file part", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if hdr.Filename == "" {
		http.Error(w, "No selected file", http.StatusBadRequest)
		return
	}
	if s.predictor == nil {
		http.Error(w, "Detection model is not available", http.StatusServiceUnavailable)
		return
	}

	res, err := s.predictor.Detect(r.Context(), hdr.Filename, file)
	if err != nil {
		var remote *detect.RemoteError
		if errors.As(err, &remote) {
			http.Error(w, remote.Message, remote.Status)
			return
		}
		s.log.Error("Predict %s: %v", hdr.Filename, err)
		http.Error(w, "Error processing file", http.StatusInternalServerError)
		return
	}

	ct := res.ContentType
	if ct == "" && res.Format != "" {
		ct = "image/" + res.Format
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", fmt.Sprint(len(res.Image)))
	_, _ = w.Write(res.Image)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
