// Package poller drives fetch -> reconcile -> render on a fixed wall-clock
// period. Ticks are not completion based, so fetches may overlap; every
// fetch carries a sequence number and stale completions are discarded.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/feed"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/metrics"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/reconcile"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/snapshot"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/timeutil"
)

// DefaultInterval matches the original board refresh period.
const DefaultInterval = 3 * time.Second

// StalePolicy decides which completed fetches may be applied.
type StalePolicy string

const (
	// PolicyNewest applies a response when it is newer than the last
	// applied one. It is the default: with PolicyLatestIssued a backend
	// whose round trip outlasts the interval never gets a response applied,
	// because the next fetch is always issued first. Responses still never
	// go backwards.
	PolicyNewest StalePolicy = "newest"
	// PolicyLatestIssued applies a response only when no later fetch has
	// been issued yet. Strictest ordering, but it starves on a slow backend.
	PolicyLatestIssued StalePolicy = "latest-issued"
)

// ParseStalePolicy maps a config string to a policy.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(s) {
	case "", PolicyNewest:
		return PolicyNewest, nil
	case PolicyLatestIssued:
		return PolicyLatestIssued, nil
	}
	return "", fmt.Errorf("unknown stale policy %q", s)
}

// ErrStale is reported for a response that lost the ordering race.
var ErrStale = errors.New("stale snapshot discarded")

// Outcome describes how a cycle ended.
type Outcome struct {
	Seq     uint64
	Applied bool
	Err     error
	Result  reconcile.Result
}

// Fetcher retrieves one snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*snapshot.Snapshot, error)
}

// Config tunes a Poller.
type Config struct {
	Interval time.Duration
	Policy   StalePolicy
	Location *time.Location
	Clock    timeutil.Clock
	Metrics  *metrics.Metrics
	Log      logger.Module

	// AfterCycle, when set, is called once per cycle after it ends.
	AfterCycle func(Outcome)
}

// Stats is a point-in-time view of the poller.
type Stats struct {
	Issued        uint64    `json:"issued"`
	Applied       uint64    `json:"applied"`
	Failed        uint64    `json:"failed"`
	Stale         uint64    `json:"stale"`
	LastApplied   uint64    `json:"last_applied_seq"`
	LastAppliedAt time.Time `json:"last_applied_at"`
	LastError     string    `json:"last_error,omitempty"`
	Markers       int       `json:"markers"`
	Zones         int       `json:"zones"`
}

// Poller owns the cycle loop. The apply step holds mu, which makes the
// reconciler and sink single-writer even with overlapping fetches.
type Poller struct {
	fetcher Fetcher
	rec     *reconcile.Reconciler
	sink    feed.Sink
	cfg     Config

	issued  atomic.Uint64
	applied atomic.Uint64
	failed  atomic.Uint64
	stale   atomic.Uint64

	mu            sync.Mutex
	lastApplied   uint64
	lastAppliedAt time.Time
	lastErr       error

	wg sync.WaitGroup
}

// New wires a Poller. Zero config fields take defaults.
func New(fetcher Fetcher, rec *reconcile.Reconciler, sink feed.Sink, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyNewest
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Log.Name() == "" {
		cfg.Log = logger.For("Poller")
	}
	return &Poller{fetcher: fetcher, rec: rec, sink: sink, cfg: cfg}
}

// Run starts one cycle immediately and one per Interval afterwards until
// ctx is done, then waits for in-flight cycles.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.cfg.Log.Info("Polling every %s (stale policy %s)", p.cfg.Interval, p.cfg.Policy)
	p.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.launch(ctx)
		}
	}
}

func (p *Poller) launch(ctx context.Context) {
	seq := p.issued.Add(1)
	p.cfg.Metrics.CyclesIssued.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.cycle(ctx, seq)
	}()
}

// RunOnce performs a single synchronous cycle.
func (p *Poller) RunOnce(ctx context.Context) error {
	seq := p.issued.Add(1)
	p.cfg.Metrics.CyclesIssued.Add(1)
	return p.cycle(ctx, seq).Err
}

// cycle is the failure boundary: nothing escapes it, panics included.
func (p *Poller) cycle(ctx context.Context, seq uint64) (out Outcome) {
	out.Seq = seq
	defer func() {
		if r := recover(); r != nil {
			out.Applied = false
			out.Err = fmt.Errorf("cycle %d panicked: %v", seq, r)
		}
		p.finish(ctx, out)
	}()

	start := p.cfg.Clock.Now()
	snap, err := p.fetcher.Fetch(ctx)
	p.cfg.Metrics.ObserveFetch(p.cfg.Clock.Since(start))
	if err != nil {
		out.Err = err
		return out
	}

	out.Result, out.Err = p.apply(seq, snap)
	out.Applied = out.Err == nil
	return out
}

func (p *Poller) apply(seq uint64, snap *snapshot.Snapshot) (reconcile.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.admissible(seq) {
		return reconcile.Result{}, ErrStale
	}

	start := p.cfg.Clock.Now()
	res := p.rec.Apply(snap)
	feed.Render(p.sink, snap, p.cfg.Location)
	p.cfg.Metrics.ObserveApply(p.cfg.Clock.Since(start))

	p.lastApplied = seq
	p.lastAppliedAt = p.cfg.Clock.Now()
	p.cfg.Metrics.Markers.Store(uint64(p.rec.Markers().Len()))
	p.cfg.Metrics.Zones.Store(uint64(p.rec.Zones().Len()))
	p.cfg.Metrics.EntitiesSkipped.Add(uint64(len(res.Skipped)))
	return res, nil
}

func (p *Poller) admissible(seq uint64) bool {
	if seq <= p.lastApplied {
		return false
	}
	if p.cfg.Policy == PolicyLatestIssued {
		return seq == p.issued.Load()
	}
	return true
}

func (p *Poller) finish(ctx context.Context, out Outcome) {
	switch {
	case out.Applied:
		p.applied.Add(1)
		p.cfg.Metrics.CyclesApplied.Add(1)
		p.cfg.Log.Debug("Cycle %d applied (+%d markers, +%d/-%d zones, %d skipped)", out.Seq,
			out.Result.MarkersCreated, out.Result.ZonesCreated, out.Result.ZonesRemoved, len(out.Result.Skipped))
	case errors.Is(out.Err, ErrStale):
		p.stale.Add(1)
		p.cfg.Metrics.CyclesStale.Add(1)
		p.cfg.Log.Debug("Cycle %d discarded: newer snapshot already applied", out.Seq)
	case ctx.Err() != nil:
		p.cfg.Log.Debug("Cycle %d abandoned on shutdown: %v", out.Seq, out.Err)
	default:
		p.failed.Add(1)
		p.cfg.Metrics.CyclesFailed.Add(1)
		p.mu.Lock()
		p.lastErr = out.Err
		p.mu.Unlock()
		p.cfg.Log.Warn("Cycle %d failed: %v", out.Seq, out.Err)
	}

	if p.cfg.AfterCycle != nil {
		p.cfg.AfterCycle(out)
	}
}

// Stats returns counters and the current registry sizes.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Issued:        p.issued.Load(),
		Applied:       p.applied.Load(),
		Failed:        p.failed.Load(),
		Stale:         p.stale.Load(),
		LastApplied:   p.lastApplied,
		LastAppliedAt: p.lastAppliedAt,
		Markers:       p.rec.Markers().Len(),
		Zones:         p.rec.Zones().Len(),
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}
