package stateserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
)

// weightedDetection biases the simulator towards animals so alerts stay rare.
type weightedDetection struct {
	kind   snapshot.DetectionType
	weight float64
}

var simulatedDetections = []weightedDetection{
	{snapshot.DetectionElephant, 1},
	{snapshot.DetectionTiger, 1},
	{snapshot.DetectionWolf, 1},
	{snapshot.DetectionLeopard, 1},
	{snapshot.DetectionHuman, 0.5},
	{snapshot.DetectionVehicle, 0.5},
}

// Simulator posts random camera-trap events to a state server.
type Simulator struct {
	url     string
	cameras []string
	client  *http.Client
	rng     *rand.Rand
	log     logger.Module

	// MinDelay and MaxDelay bound the pause between events.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// NewSimulator returns a simulator for the server at baseURL. A nil rng
// is seeded randomly.
func NewSimulator(baseURL string, cameras []string, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{
		url:      strings.TrimRight(baseURL, "/") + "/api/event",
		cameras:  cameras,
		client:   &http.Client{Timeout: 10 * time.Second},
		rng:      rng,
		log:      logger.For("Simulator"),
		MinDelay: 5 * time.Second,
		MaxDelay: 15 * time.Second,
	}
}

// Next draws the next event.
func (s *Simulator) Next() EventRequest {
	total := 0.0
	for _, d := range simulatedDetections {
		total += d.weight
	}
	pick := s.rng.Float64() * total
	kind := simulatedDetections[len(simulatedDetections)-1].kind
	for _, d := range simulatedDetections {
		if pick < d.weight {
			kind = d.kind
			break
		}
		pick -= d.weight
	}
	return EventRequest{
		CameraID:  s.cameras[s.rng.IntN(len(s.cameras))],
		Detection: kind,
	}
}

// Send posts one event.
func (s *Simulator) Send(ctx context.Context, ev EventRequest) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post event: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Delay draws the pause before the next event.
func (s *Simulator) Delay() time.Duration {
	span := s.MaxDelay - s.MinDelay
	if span <= 0 {
		return s.MinDelay
	}
	return s.MinDelay + time.Duration(s.rng.Int64N(int64(span)))
}

// Run sends events until ctx is done. Failed posts are logged and skipped.
func (s *Simulator) Run(ctx context.Context) {
	s.log.Info("Sending events to %s", s.url)
	for {
		ev := s.Next()
		if err := s.Send(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("Failed to send %s at %s: %v", ev.Detection, ev.CameraID, err)
		} else {
			s.log.Info("Event sent: %s at %s", ev.Detection, ev.CameraID)
		}

		d := s.Delay()
		s.log.Debug("Sleeping for %.1f seconds", d.Seconds())
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}
