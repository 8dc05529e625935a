package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the board's counters and gauges
type Metrics struct {
	// Poll cycle counters
	CyclesIssued  atomic.Uint64
	CyclesApplied atomic.Uint64
	CyclesFailed  atomic.Uint64
	CyclesStale   atomic.Uint64

	// Reconciliation
	EntitiesSkipped atomic.Uint64
	Markers         atomic.Uint64
	Zones           atomic.Uint64

	// Latency tracking
	FetchLatencyMs atomic.Uint64 // Last fetch round trip in ms
	ApplyLatencyUs atomic.Uint64 // Last reconcile+render in µs

	// Browser clients on the op stream
	StreamClients atomic.Int64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauge := func(name, help string, read func() float64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, read))
	}
	counter := func(name, help string, v *atomic.Uint64) {
		m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) }))
	}

	counter("board_cycles_issued_total", "Poll cycles started", &m.CyclesIssued)
	counter("board_cycles_applied_total", "Snapshots reconciled onto the board", &m.CyclesApplied)
	counter("board_cycles_failed_total", "Poll cycles that failed to fetch or apply", &m.CyclesFailed)
	counter("board_cycles_stale_total", "Snapshots discarded because a newer one was already applied", &m.CyclesStale)
	counter("board_entities_skipped_total", "Cameras or zones skipped as malformed", &m.EntitiesSkipped)

	gauge("board_markers", "Camera markers on the map", func() float64 { return float64(m.Markers.Load()) })
	gauge("board_zones", "Active zone overlays on the map", func() float64 { return float64(m.Zones.Load()) })
	gauge("board_fetch_latency_ms", "Last snapshot fetch round trip in milliseconds",
		func() float64 { return float64(m.FetchLatencyMs.Load()) })
	gauge("board_apply_latency_us", "Last reconcile and render duration in microseconds",
		func() float64 { return float64(m.ApplyLatencyUs.Load()) })
	gauge("board_stream_clients", "Browsers subscribed to the op stream",
		func() float64 { return float64(m.StreamClients.Load()) })
}

// ObserveFetch records one fetch round trip.
func (m *Metrics) ObserveFetch(d time.Duration) {
	m.FetchLatencyMs.Store(uint64(d.Milliseconds()))
}

// ObserveApply records one reconcile+render pass.
func (m *Metrics) ObserveApply(d time.Duration) {
	m.ApplyLatencyUs.Store(uint64(d.Microseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
