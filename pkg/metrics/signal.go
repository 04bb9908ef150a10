package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initSignalMetrics(cfg Config) {
	m.signalSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_sent_total",
			Help: "Total number of signals published",
		},
		[]string{"type"},
	)

	m.signalDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_delivered_total",
			Help: "Total number of signal deliveries (one per source handle)",
		},
		[]string{"type"},
	)

	m.signalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_failures_total",
			Help: "Total number of failed signal operations",
		},
		[]string{"op", "reason"},
	)

	m.receiveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signal_receive_duration_seconds",
			Help:    "Receive call duration in seconds, including blocking time",
			Buckets: cfg.ReceiveDurationBuckets,
		},
		[]string{"status"},
	)

	m.registry.MustRegister(m.signalSent)
	m.registry.MustRegister(m.signalDelivered)
	m.registry.MustRegister(m.signalFailures)
	m.registry.MustRegister(m.receiveDuration)
}

// RecordSignalSent records a published signal.
func (m *Manager) RecordSignalSent(signalType string) {
	if !m.enabled {
		return
	}
	m.signalSent.WithLabelValues(signalType).Inc()
}

// RecordSignalDelivered records one signal delivery to one source handle.
func (m *Manager) RecordSignalDelivered(signalType string) {
	if !m.enabled {
		return
	}
	m.signalDelivered.WithLabelValues(signalType).Inc()
}

// RecordSignalFailed records a failed signal operation.
func (m *Manager) RecordSignalFailed(op string, reason string) {
	if !m.enabled {
		return
	}
	m.signalFailures.WithLabelValues(op, reason).Inc()
}

// RecordReceive records a receive call's status and latency.
func (m *Manager) RecordReceive(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.receiveDuration.WithLabelValues(status).Observe(duration.Seconds())
}
