package stats

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names registered by the gateway.
const (
	MetricConnections = "active_connections"
	MetricRooms       = "active_rooms"
	MetricBroadcasts  = "broadcasts_total"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
}

// PromStats exposes counters as prometheus gauges. Metrics must be
// registered before use; Incr/Decr on an unregistered name panics, which
// surfaces wiring mistakes immediately at startup.
type PromStats struct {
	registry *prometheus.Registry
	mu       sync.RWMutex
	gauges   map[string]prometheus.Gauge
}

func NewPromStats() *PromStats {
	ps := &PromStats{
		registry: prometheus.NewRegistry(),
		gauges:   make(map[string]prometheus.Gauge),
	}

	startTime := time.Now()
	ps.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "chatsync",
		Name:      "uptime_milliseconds",
		Help:      "Time since the server started.",
	}, func() float64 {
		return float64(time.Since(startTime).Milliseconds())
	}))

	return ps
}

// Handler serves the metrics endpoint.
func (ps *PromStats) Handler() http.Handler {
	return promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{})
}

func (ps *PromStats) RegisterMetric(name string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, ok := ps.gauges[name]; ok {
		return
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsync",
		Name:      name,
	})
	ps.registry.MustRegister(g)
	ps.gauges[name] = g
}

func (ps *PromStats) Incr(name string) {
	ps.gauge(name).Inc()
}

func (ps *PromStats) Decr(name string) {
	ps.gauge(name).Dec()
}

func (ps *PromStats) gauge(name string) prometheus.Gauge {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	g, ok := ps.gauges[name]
	if !ok {
		panic("metric not found: " + name)
	}

	return g
}
