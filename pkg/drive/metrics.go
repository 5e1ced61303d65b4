package drive

import "time"

// Metrics is the instrumentation hook for drive operations.
//
// A nil Metrics on the Drive is replaced by a no-op implementation, so
// callers that don't collect metrics pay nothing. The Prometheus
// implementation lives in pkg/metrics.
type Metrics interface {
	// ObserveOperation records one drive operation with its duration and
	// outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// AddContentBytes records payload bytes moving through uploads
	// (direction "write") and downloads (direction "read").
	AddContentBytes(direction string, n int64)
}

// noopMetrics is used when no metrics collector is configured.
type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) AddContentBytes(string, int64)                 {}
