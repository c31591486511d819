package workerpool

import "time"

// Metrics observes pool activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// ObserveJob records a finished job of the given kind.
	ObserveJob(kind string, duration time.Duration, err error)

	// SetBusyWorkers records the number of workers currently running a job.
	SetBusyWorkers(n int)

	// SetQueueDepth records the number of queued jobs.
	SetQueueDepth(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveJob(string, time.Duration, error) {}
func (noopMetrics) SetBusyWorkers(int)                      {}
func (noopMetrics) SetQueueDepth(int)                       {}
