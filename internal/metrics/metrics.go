// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the relay collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	relays         *prometheus.CounterVec
	threadsCreated prometheus.Counter
	albumFlushes   *prometheus.CounterVec
	pendingEdits   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmrelay_relays_total",
			Help: "Relayed messages by direction and outcome.",
		}, []string{"direction", "outcome"}),
		threadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pmrelay_threads_created_total",
			Help: "Conversation threads created in the staff group.",
		}),
		albumFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmrelay_album_flushes_total",
			Help: "Grouped sends flushed by the album aggregator.",
		}, []string{"direction"}),
		pendingEdits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pmrelay_pending_edits",
			Help: "Pending edit entries awaiting replacement content.",
		}),
	}
	m.registry.MustRegister(
		m.relays,
		m.threadsCreated,
		m.albumFlushes,
		m.pendingEdits,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Relay(direction, outcome string) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(direction, outcome).Inc()
}

func (m *Metrics) ThreadCreated() {
	if m == nil {
		return
	}
	m.threadsCreated.Inc()
}

func (m *Metrics) AlbumFlushed(direction string) {
	if m == nil {
		return
	}
	m.albumFlushes.WithLabelValues(direction).Inc()
}

func (m *Metrics) PendingEdits(n int) {
	if m == nil {
		return
	}
	m.pendingEdits.Set(float64(n))
}
