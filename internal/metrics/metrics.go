// Package metrics exposes Prometheus instrumentation for the relay core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	OpenRooms        prometheus.Gauge
	SignalsTotal     *prometheus.CounterVec
	FanoutTotal      *prometheus.CounterVec
	GlareSuppressed  prometheus.Counter
	RejectedSessions prometheus.Counter
}

// New creates all metrics and registers them on reg.
// Pass a fresh prometheus.NewRegistry() per instance.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "parley_active_sessions",
			Help: "Currently registered transport sessions",
		}),
		OpenRooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "parley_open_rooms",
			Help: "Rooms with at least one member",
		}),
		SignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_signals_total",
			Help: "Signaling frames relayed, by result",
		}, []string{"result"}),
		FanoutTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_fanout_events_total",
			Help: "Chat events fanned out, by kind",
		}, []string{"kind"}),
		GlareSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "parley_glare_suppressed_total",
			Help: "Duplicate offers discarded by glare suppression",
		}),
		RejectedSessions: f.NewCounter(prometheus.CounterOpts{
			Name: "parley_rejected_sessions_total",
			Help: "Transport connections rejected at handshake",
		}),
	}
}
