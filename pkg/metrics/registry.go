// Package metrics exports filesystem and download-pool counters to
// Prometheus.
//
// Collection is opt-in. Until InitRegistry runs, NewFilesystemMetrics and
// NewPoolMetrics return nil, and vfs.New and workerpool.New accept a nil
// Metrics value as "record nothing":
//
//	metrics.InitRegistry()
//	fsm := metrics.NewFilesystemMetrics()
//	pm := metrics.NewPoolMetrics("downloads")
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Only the first call has
// an effect.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the process-wide registry, or nil before
// InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
