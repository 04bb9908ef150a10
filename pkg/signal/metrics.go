package signal

import (
	"sync"
	"time"
)

// MetricsRecorder defines metrics hooks for signal operations.
type MetricsRecorder interface {
	RecordSignalSent(signalType string)
	RecordSignalDelivered(signalType string)
	RecordSignalFailed(op string, reason string)
	RecordReceive(status string, duration time.Duration)
}

type nopMetrics struct{}

func (n *nopMetrics) RecordSignalSent(signalType string)           {}
func (n *nopMetrics) RecordSignalDelivered(signalType string)      {}
func (n *nopMetrics) RecordSignalFailed(op string, reason string)  {}
func (n *nopMetrics) RecordReceive(status string, d time.Duration) {}

var (
	metricsMu sync.RWMutex
	metrics   MetricsRecorder = &nopMetrics{}
)

// SetMetricsRecorder sets the package-level signal metrics recorder.
func SetMetricsRecorder(recorder MetricsRecorder) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if recorder == nil {
		metrics = &nopMetrics{}
		return
	}
	metrics = recorder
}

func metricsRecorder() MetricsRecorder {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if metrics == nil {
		return &nopMetrics{}
	}
	return metrics
}
