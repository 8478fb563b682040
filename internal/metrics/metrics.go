// Package metrics provides Prometheus metrics for the realtime engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	BroadcastsTotal   *prometheus.CounterVec
	DroppedDeliveries prometheus.Counter
	WarningsTotal     *prometheus.CounterVec
	MatchesCreated    prometheus.Counter
	MatchesExpired    prometheus.Counter
	OnlineUsers       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_events_total",
				Help: "Inbound realtime events by name and outcome.",
			},
			[]string{"event", "status"},
		),
		BroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_broadcasts_total",
				Help: "Room broadcasts by event name.",
			},
			[]string{"event"},
		),
		DroppedDeliveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_dropped_deliveries_total",
				Help: "Per-connection deliveries dropped due to a full send buffer.",
			},
		),
		WarningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_expiration_warnings_total",
				Help: "Expiration warnings dispatched by urgency level.",
			},
			[]string{"urgency"},
		),
		MatchesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_matches_created_total",
				Help: "Matches created from mutual likes.",
			},
		),
		MatchesExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_matches_expired_total",
				Help: "Matches transitioned to expired by the sweep.",
			},
		),
		OnlineUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_online_users",
				Help: "Distinct users with at least one live connection.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.EventsTotal)
	reg.MustRegister(m.BroadcastsTotal)
	reg.MustRegister(m.DroppedDeliveries)
	reg.MustRegister(m.WarningsTotal)
	reg.MustRegister(m.MatchesCreated)
	reg.MustRegister(m.MatchesExpired)
	reg.MustRegister(m.OnlineUsers)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvent increments the inbound event counter.
func (m *Metrics) RecordEvent(event, status string) {
	m.EventsTotal.WithLabelValues(event, status).Inc()
}

// RecordBroadcast counts one room broadcast.
func (m *Metrics) RecordBroadcast(event string) {
	m.BroadcastsTotal.WithLabelValues(event).Inc()
}

// RecordDroppedDelivery counts a delivery dropped on a full send buffer.
func (m *Metrics) RecordDroppedDelivery() {
	m.DroppedDeliveries.Inc()
}

// RecordWarning counts one dispatched expiration warning.
func (m *Metrics) RecordWarning(urgency string) {
	m.WarningsTotal.WithLabelValues(urgency).Inc()
}
