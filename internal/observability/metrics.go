package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roomsync/server/internal/telemetry"
)

const namespace = "roomsync"

var metricHelp = map[string]string{
	telemetry.MetricConnectionsLive:       "Connections currently registered and live.",
	telemetry.MetricConnectionsTotal:      "Connections accepted since start.",
	telemetry.MetricOutboundQueueDepth:    "Frames waiting for the next flush.",
	telemetry.MetricOutboundOverflowTotal: "Frames dropped because the outbound queue was full.",
	telemetry.MetricMessagesFlushedTotal:  "Frames handed to connections by the flush task.",
	telemetry.MetricBytesFlushedTotal:     "Bytes handed to connections by the flush task.",
	telemetry.MetricFramesDroppedTotal:    "Frames that could not be handed to a connection.",
	telemetry.MetricInboundMessagesTotal:  "Frames received from clients.",
	telemetry.MetricInboundMalformedTotal: "Client frames discarded as malformed.",
	telemetry.MetricLockRejectionsTotal:   "Requests refused by the single-owner lock check.",
	telemetry.MetricStoreObjects:          "Objects in the shared store.",
	telemetry.MetricAvatars:               "Avatar records held.",
}

// Metrics records telemetry keys as Prometheus series on a private registry.
// Keys ending in _total become counters; every other key is a gauge.
type Metrics struct {
	registry *prometheus.Registry

	mu       sync.Mutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

var _ telemetry.Metrics = (*Metrics)(nil)

// NewMetrics registers the runtime collectors and every known telemetry key.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for key := range metricHelp {
		if isCounter(key) {
			m.counter(key)
		} else {
			m.gauge(key)
		}
	}
	return m
}

func (m *Metrics) Add(key string, delta uint64) {
	if m == nil || delta == 0 {
		return
	}
	if !isCounter(key) {
		m.gauge(key).Add(float64(delta))
		return
	}
	m.counter(key).Add(float64(delta))
}

func (m *Metrics) Store(key string, value uint64) {
	if m == nil {
		return
	}
	m.gauge(key).Set(float64(value))
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) counter(key string) prometheus.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[key]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      seriesName(key),
		Help:      help(key),
	})
	m.registry.MustRegister(c)
	m.counters[key] = c
	return c
}

func (m *Metrics) gauge(key string) prometheus.Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[key]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      seriesName(key),
		Help:      help(key),
	})
	m.registry.MustRegister(g)
	m.gauges[key] = g
	return g
}

func isCounter(key string) bool {
	return strings.HasSuffix(key, "_total")
}

func seriesName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

func help(key string) string {
	if text, ok := metricHelp[key]; ok {
		return text
	}
	return "Telemetry key " + key + "."
}
