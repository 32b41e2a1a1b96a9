package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProtocolMetrics provides observability for wire-protocol request handling.
//
// This interface is optional - a nil ProtocolMetrics means no collection and
// zero overhead, so callers guard every use with a nil check.
type ProtocolMetrics interface {
	// RecordRequest records a completed procedure call with its name,
	// duration, and outcome.
	RecordRequest(procedure string, duration time.Duration, ok bool)

	// ConnectionOpened / ConnectionClosed track the live connection gauge.
	ConnectionOpened()
	ConnectionClosed()

	// SessionOpened / SessionClosed track the logged-in session gauge.
	SessionOpened()
	SessionClosed()

	// RecordUploadBytes and RecordDownloadBytes accumulate transfer volume.
	RecordUploadBytes(n int)
	RecordDownloadBytes(n int)
}

// protocolMetrics is the Prometheus implementation of ProtocolMetrics.
type protocolMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	connections     prometheus.Gauge
	sessions        prometheus.Gauge
	uploadBytes     prometheus.Counter
	downloadBytes   prometheus.Counter
}

// NewProtocolMetrics creates a Prometheus-backed ProtocolMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// callers treat as no-op.
func NewProtocolMetrics() ProtocolMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &protocolMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "loftfs_requests_total",
				Help: "Total number of protocol requests by procedure and outcome",
			},
			[]string{"procedure", "outcome"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loftfs_request_duration_seconds",
				Help:    "Duration of protocol request handling in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"procedure"},
		),
		connections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "loftfs_connections",
				Help: "Number of currently open client connections",
			},
		),
		sessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "loftfs_sessions",
				Help: "Number of currently logged-in sessions",
			},
		),
		uploadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "loftfs_upload_bytes_total",
				Help: "Total bytes received in upload requests",
			},
		),
		downloadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "loftfs_download_bytes_total",
				Help: "Total bytes served in download replies",
			},
		),
	}
}

func (m *protocolMetrics) RecordRequest(procedure string, duration time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.requests.WithLabelValues(procedure, outcome).Inc()
	m.requestDuration.WithLabelValues(procedure).Observe(duration.Seconds())
}

func (m *protocolMetrics) ConnectionOpened() { m.connections.Inc() }
func (m *protocolMetrics) ConnectionClosed() { m.connections.Dec() }
func (m *protocolMetrics) SessionOpened()    { m.sessions.Inc() }
func (m *protocolMetrics) SessionClosed()    { m.sessions.Dec() }

func (m *protocolMetrics) RecordUploadBytes(n int) {
	if n > 0 {
		m.uploadBytes.Add(float64(n))
	}
}

func (m *protocolMetrics) RecordDownloadBytes(n int) {
	if n > 0 {
		m.downloadBytes.Add(float64(n))
	}
}
