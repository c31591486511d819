package vfs

import "time"

// Metrics observes filesystem activity. A nil Metrics in Options disables
// collection. Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveOperation records one engine call; code is 0 on success.
	ObserveOperation(op string, code ErrorCode, duration time.Duration)

	// ObserveDownload records a finished fetch. outcome is one of
	// "complete", "headers_only" or "failed".
	ObserveDownload(outcome string, bytes int64, duration time.Duration)

	// SetDownloadsInFlight records the number of running fetches.
	SetDownloadsInFlight(n int)

	// SetOpenHandles records the number of live handles.
	SetOpenHandles(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, ErrorCode, time.Duration) {}
func (noopMetrics) ObserveDownload(string, int64, time.Duration)      {}
func (noopMetrics) SetDownloadsInFlight(int)                          {}
func (noopMetrics) SetOpenHandles(int)                                {}
