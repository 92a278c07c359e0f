package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks workflow activity.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	CollaboratorSeconds *prometheus.HistogramVec
	RejectedTriggers    *prometheus.CounterVec
	DroppedSubscribers  prometheus.Counter
	ActiveStreams       prometheus.Gauge
}

// NewMetrics creates and registers workflow metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veriflow",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Stage transitions applied, by stage and entry status.",
		}, []string{"stage", "status"}),
		CollaboratorSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "veriflow",
			Subsystem: "workflow",
			Name:      "collaborator_duration_seconds",
			Help:      "Duration of external collaborator calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"collaborator"}),
		RejectedTriggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veriflow",
			Subsystem: "workflow",
			Name:      "rejected_triggers_total",
			Help:      "Triggers rejected before execution, by reason.",
		}, []string{"reason"}),
		DroppedSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veriflow",
			Subsystem: "events",
			Name:      "dropped_subscribers_total",
			Help:      "Stream subscribers disconnected for falling behind.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "veriflow",
			Subsystem: "events",
			Name:      "active_streams",
			Help:      "Currently connected status stream subscribers.",
		}),
	}

	reg.MustRegister(
		m.Transitions,
		m.CollaboratorSeconds,
		m.RejectedTriggers,
		m.DroppedSubscribers,
		m.ActiveStreams,
	)
	return m
}
