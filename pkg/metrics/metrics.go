// Package metrics holds the Prometheus collectors for the realtime layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	connections        prometheus.Gauge
	onlineUsers        prometheus.Gauge
	pushes             *prometheus.CounterVec
	dropped            *prometheus.CounterVec
	presenceBroadcasts prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatterbox_ws_connections",
			Help: "Number of live websocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatterbox_online_users",
			Help: "Number of users with at least one live connection.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatterbox_push_total",
			Help: "Events enqueued to live connections.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatterbox_push_dropped_total",
			Help: "Events that could not be enqueued to a live connection.",
		}, []string{"event", "reason"}),
		presenceBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatterbox_presence_broadcasts_total",
			Help: "Presence snapshots announced to all connections.",
		}),
	}
	m.registry.MustRegister(
		m.connections,
		m.onlineUsers,
		m.pushes,
		m.dropped,
		m.presenceBroadcasts,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetConnections(conns, users int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(conns))
	m.onlineUsers.Set(float64(users))
}

func (m *Metrics) Pushed(event string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(event).Inc()
}

func (m *Metrics) Dropped(event, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) PresenceBroadcast() {
	if m == nil {
		return
	}
	m.presenceBroadcasts.Inc()
}
