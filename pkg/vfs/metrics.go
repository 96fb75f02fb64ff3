package vfs

import "time"

// Metrics receives measurements from filesystem provider operations.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveOperation records one provider operation with its outcome.
	ObserveOperation(op string, duration time.Duration, err error)

	// ObserveDedup records the outcome of a content-hash lookup during a
	// write: hit means the content was already stored.
	ObserveDedup(hit bool)
}

// ReaperMetrics receives measurements from orphan blob sweeps.
type ReaperMetrics interface {
	// ObserveSweep records one reaper sweep.
	ObserveSweep(reaped int, duration time.Duration, err error)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, time.Duration, error) {}
func (NopMetrics) ObserveDedup(bool)                             {}
func (NopMetrics) ObserveSweep(int, time.Duration, error)        {}
