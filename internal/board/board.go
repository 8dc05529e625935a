// Package board assembles the monitoring board: the snapshot poller, the
// live map layer and the HTTP surface browsers connect to.
package board

import (
	"context"
	"net/http"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/mapview"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/metrics"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/poller"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/reconcile"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/timeutil"
)

// predictTimeout bounds one proxied detection request.
const predictTimeout = 60 * time.Second

// Options injects collaborators, mainly for tests. Zero values are fine.
type Options struct {
	Clock      timeutil.Clock
	Client     snapshot.Doer
	AfterCycle func(poller.Outcome)
}

// Board owns one poller and the map layer it draws on.
type Board struct {
	cfg     Config
	loc     *time.Location
	metrics *metrics.Metrics
	bc      *mapview.Broadcaster
	layer   *mapview.Layer
	rec     *reconcile.Reconciler
	poller  *poller.Poller
	backend *http.Client
	log     logger.Module
}

// New validates cfg and wires the board.
func New(cfg Config, opts Options) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := poller.ParseStalePolicy(cfg.StalePolicy)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	bc := mapview.NewBroadcaster(0)
	bc.OnClientsChanged = func(n int) { m.StreamClients.Store(int64(n)) }
	layer := mapview.NewLayer(bc)

	rec := reconcile.New(layer, reconcile.Options{
		Location:   loc,
		ZoneRadius: cfg.ZoneRadiusM,
	})
	fetcher := snapshot.NewFetcher(cfg.BackendURL, opts.Client, cfg.FetchTimeout)
	p := poller.New(fetcher, rec, layer, poller.Config{
		Interval:   cfg.PollInterval,
		Policy:     policy,
		Location:   loc,
		Clock:      opts.Clock,
		Metrics:    m,
		AfterCycle: opts.AfterCycle,
	})

	return &Board{
		cfg:     cfg,
		loc:     loc,
		metrics: m,
		bc:      bc,
		layer:   layer,
		rec:     rec,
		poller:  p,
		backend: &http.Client{Timeout: predictTimeout},
		log:     logger.For("Board"),
	}, nil
}

// Run polls until ctx is done.
func (b *Board) Run(ctx context.Context) {
	b.log.Info("Polling %s", b.cfg.BackendURL+snapshot.StatePath)
	b.poller.Run(ctx)
}

// RunOnce applies a single snapshot.
func (b *Board) RunOnce(ctx context.Context) error {
	return b.poller.RunOnce(ctx)
}

// Stats returns the poller counters.
func (b *Board) Stats() poller.Stats { return b.poller.Stats() }

// Layer returns the map layer the board draws on.
func (b *Board) Layer() *mapview.Layer { return b.layer }

// Metrics returns the board's metrics.
func (b *Board) Metrics() *metrics.Metrics { return b.metrics }

// Handler returns the HTTP handler for browsers.
func (b *Board) Handler() http.Handler {
	return newServer(b).routes()
}
