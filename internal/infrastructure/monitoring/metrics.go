package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devtools_bridge"

// Route kinds used as the "route" label.
const (
	RouteLanding = "landing"
	RouteProxy   = "proxy"
	RouteUpgrade = "upgrade"
)

// Metrics holds all Prometheus metrics of one bridge instance. Each
// instance owns its registry, so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Discovery metrics
	DiscoveryTotal    *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	BreakerState      *prometheus.GaugeVec

	// Proxy metrics
	ProxyErrors   *prometheus.CounterVec
	TunnelsActive prometheus.Gauge
	TunnelsTotal  prometheus.Counter

	// Listener metrics
	ConnectionsActive prometheus.Gauge

	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats endpoint.
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	Discoveries       int64   `json:"discoveries"`
	DiscoveryFailures int64   `json:"discovery_failures"`
	ProxyErrors       int64   `json:"proxy_errors"`
	ActiveTunnels     int64   `json:"active_tunnels"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by a fresh registry that
// also carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests on the public listener",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"route"},
		),

		// Discovery metrics
		DiscoveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_total",
				Help:      "Page discoveries by outcome",
			},
			[]string{"outcome"},
		),
		DiscoveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "discovery_duration_seconds",
				Help:      "Page discovery duration in seconds, retries included",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"breaker"},
		),

		// Proxy metrics
		ProxyErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_errors_total",
				Help:      "Forwarding failures by request kind",
			},
			[]string{"kind"},
		),
		TunnelsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tunnels_active",
				Help:      "Number of open WebSocket tunnels to the target",
			},
		),
		TunnelsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tunnels_total",
				Help:      "Total number of WebSocket tunnels opened",
			},
		),

		// Listener metrics
		ConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_active",
				Help:      "Number of open client connections on the public listener",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Bridge uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing this collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format for this collector.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a request on the public listener
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(route).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status >= 400 {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveDiscovery records one discovery call
func (m *Metrics) ObserveDiscovery(outcome string, duration time.Duration) {
	m.DiscoveryTotal.WithLabelValues(outcome).Inc()
	m.DiscoveryDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Discoveries++
	if outcome != "ok" {
		m.snapshot.DiscoveryFailures++
	}
	m.mu.Unlock()
}

// SetBreakerState records a circuit breaker transition
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordProxyError records a forwarding failure
func (m *Metrics) RecordProxyError(kind string) {
	m.ProxyErrors.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.ProxyErrors++
	m.mu.Unlock()
}

// IncTunnels records an opened WebSocket tunnel
func (m *Metrics) IncTunnels() {
	m.TunnelsActive.Inc()
	m.TunnelsTotal.Inc()
	m.mu.Lock()
	m.snapshot.ActiveTunnels++
	m.mu.Unlock()
}

// DecTunnels records a closed WebSocket tunnel
func (m *Metrics) DecTunnels() {
	m.TunnelsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveTunnels--
	m.mu.Unlock()
}

// IncConnections records an accepted client connection
func (m *Metrics) IncConnections() {
	m.ConnectionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecConnections records a closed client connection
func (m *Metrics) DecConnections() {
	m.ConnectionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON stats endpoint.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
