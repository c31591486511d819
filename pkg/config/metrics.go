package config

import (
	"github.com/marmos91/httpmemfs/pkg/metrics"
	"github.com/marmos91/httpmemfs/pkg/vfs"
	"github.com/marmos91/httpmemfs/pkg/workerpool"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Filesystem is the engine collector (nil if disabled, the engine then uses a no-op)
	Filesystem vfs.Metrics

	// Pool is the download pool collector (nil if disabled)
	Pool workerpool.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled the global Prometheus registry is initialized and
// the server and collectors are created. status feeds the /status endpoint
// and may be nil.
//
// If metrics are disabled every field is nil (zero overhead).
func InitializeMetrics(cfg *Config, status metrics.StatusFunc) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:   cfg.Metrics.Port,
		Status: status,
	})

	return &MetricsResult{
		Server:     server,
		Filesystem: metrics.NewFilesystemMetrics(),
		Pool:       metrics.NewPoolMetrics("downloads"),
	}
}
