package metrics

import (
	"time"

	"github.com/marmos91/httpmemfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// filesystemMetrics is the Prometheus implementation of vfs.Metrics.
type filesystemMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	downloads         *prometheus.CounterVec
	downloadBytes     prometheus.Counter
	downloadDuration  *prometheus.HistogramVec
	downloadsInFlight prometheus.Gauge
	openHandles       prometheus.Gauge
}

// NewFilesystemMetrics returns a Prometheus-backed vfs.Metrics, or nil when
// metrics are disabled so the filesystem uses its no-op implementation.
func NewFilesystemMetrics() vfs.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &filesystemMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpmemfs_operations_total",
				Help: "Total number of filesystem operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "httpmemfs_operation_duration_seconds",
				Help: "Duration of filesystem operations in seconds, including waits for remote content",
				Buckets: []float64{
					0.00001, // 10µs
					0.0001,  // 100µs
					0.001,   // 1ms
					0.01,    // 10ms
					0.1,     // 100ms
					1,       // 1s
					10,      // 10s
					30,      // default wait timeout
				},
			},
			[]string{"operation"},
		),
		downloads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpmemfs_downloads_total",
				Help: "Total number of origin fetches by outcome",
			},
			[]string{"outcome"},
		),
		downloadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "httpmemfs_download_bytes_total",
				Help: "Total body bytes received from the origin",
			},
		),
		downloadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpmemfs_download_duration_seconds",
				Help:    "Duration of origin fetches in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"outcome"},
		),
		downloadsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "httpmemfs_downloads_in_flight",
				Help: "Number of origin fetches currently running",
			},
		),
		openHandles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "httpmemfs_open_handles",
				Help: "Number of open file handles",
			},
		),
	}
}

func (m *filesystemMetrics) ObserveOperation(op string, code vfs.ErrorCode, duration time.Duration) {
	status := "ok"
	if code != 0 {
		status = statusLabel(code)
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *filesystemMetrics) ObserveDownload(outcome string, bytes int64, duration time.Duration) {
	m.downloads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
	m.downloadDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *filesystemMetrics) SetDownloadsInFlight(n int) {
	m.downloadsInFlight.Set(float64(n))
}

func (m *filesystemMetrics) SetOpenHandles(n int) {
	m.openHandles.Set(float64(n))
}

// statusLabel turns an error code into a label value such as
// "access_denied".
func statusLabel(code vfs.ErrorCode) string {
	out := []byte(code.Error())
	for i, c := range out {
		if c == ' ' || c == '/' {
			out[i] = '_'
		}
	}
	return string(out)
}
