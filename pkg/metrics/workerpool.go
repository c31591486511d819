package metrics

import (
	"time"

	"github.com/marmos91/httpmemfs/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type poolMetrics struct {
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	busy        prometheus.Gauge
	queued      prometheus.Gauge
}

// NewPoolMetrics returns a Prometheus-backed workerpool.Metrics for the
// pool called name, or nil when metrics are disabled.
func NewPoolMetrics(name string) workerpool.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := prometheus.WrapRegistererWith(prometheus.Labels{"pool": name}, GetRegistry())

	return &poolMetrics{
		jobs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpmemfs_pool_jobs_total",
				Help: "Total number of jobs run by the worker pool",
			},
			[]string{"kind", "status"},
		),
		jobDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httpmemfs_pool_job_duration_seconds",
				Help:    "Duration of worker pool jobs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		busy: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "httpmemfs_pool_busy_workers",
				Help: "Number of workers currently running a job",
			},
		),
		queued: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "httpmemfs_pool_queue_depth",
				Help: "Number of jobs waiting for a worker",
			},
		),
	}
}

func (m *poolMetrics) ObserveJob(kind string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.jobs.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *poolMetrics) SetBusyWorkers(n int) {
	m.busy.Set(float64(n))
}

func (m *poolMetrics) SetQueueDepth(n int) {
	m.queued.Set(float64(n))
}
