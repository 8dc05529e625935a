package mapview

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
)

// KeepaliveInterval is how long an idle stream waits before a comment line.
var KeepaliveInterval = 30 * time.Second

// StreamHandler serves the scene followed by live ops as Server-Sent Events.
//
// The first event is "scene" (always JSON). Each following "op" event is
// JSON, or base64 protobuf when the client sent an Accept header naming
// application/protobuf. A client that fell behind receives a fresh "scene".
type StreamHandler struct {
	layer *Layer
	bc    *Broadcaster
	log   logger.Module
}

// NewStreamHandler returns an SSE handler over layer and bc.
func NewStreamHandler(layer *Layer, bc *Broadcaster) *StreamHandler {
	return &StreamHandler{layer: layer, bc: bc, log: logger.For("SSE")}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	// Subscribe before reading the scene so no op falls in between.
	id, opCh := h.bc.Subscribe()
	defer h.bc.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if useProtobuf {
		w.Header().Set("X-Content-Format", "application/protobuf")
	} else {
		w.Header().Set("X-Content-Format", "application/json")
	}

	sceneSeq, err := h.writeScene(w)
	if err != nil {
		h.log.Debug("Client #%d disconnected during scene write: %v", id, err)
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case op, ok := <-opCh:
			if !ok {
				return
			}
			if h.bc.Dropped(id) {
				if sceneSeq, err = h.writeScene(w); err != nil {
					return
				}
				flusher.Flush()
				continue
			}
			if op.Seq <= sceneSeq {
				continue
			}
			data := op.JSONData
			if useProtobuf {
				data = op.ProtobufData
			}
			if _, err := fmt.Fprintf(w, "event: op\nid: %d\ndata: %s\n\n", op.Seq, data); err != nil {
				h.log.Debug("Client #%d disconnected during op write: %v", id, err)
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				h.log.Debug("Client #%d disconnected during keepalive: %v", id, err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) writeScene(w http.ResponseWriter) (uint64, error) {
	scene := h.layer.Scene()
	data, err := json.Marshal(scene)
	if err != nil {
		return 0, err
	}
	_, err = fmt.Fprintf(w, "event: scene\nid: %d\ndata: %s\n\n", scene.Seq, data)
	return scene.Seq, err
}
