// Package prometheus provides Prometheus-backed implementations of the
// driftfs metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/driftfs/driftfs/pkg/metrics"
	"github.com/driftfs/driftfs/pkg/vfs"
)

// VFSMetrics is the Prometheus implementation of vfs.Metrics and
// vfs.ReaperMetrics.
type VFSMetrics struct {
	operations    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	dedupLookups  *prometheus.CounterVec
	reapedBlobs   prometheus.Counter
	sweepDuration prometheus.Histogram
	sweepErrors   prometheus.Counter
}

var (
	_ vfs.Metrics       = (*VFSMetrics)(nil)
	_ vfs.ReaperMetrics = (*VFSMetrics)(nil)
)

// NewVFSMetrics creates a Prometheus-backed metrics sink for the
// filesystem provider and the reaper.
//
// Returns nil if metrics are not enabled (InitRegistry not called);
// callers then fall back to vfs.NopMetrics.
func NewVFSMetrics() *VFSMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &VFSMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftfs_vfs_operations_total",
				Help: "Total number of filesystem operations by type and status",
			},
			[]string{"operation", "status"}, // status: "ok", "error"
		),
		opDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "driftfs_vfs_operation_duration_milliseconds",
				Help: "Duration of filesystem operations in milliseconds",
				Buckets: []float64{
					0.5,  // 500us - metadata lookups
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms - large writes
					500,  // 500ms
					1000, // 1s - deep subtree operations
					5000, // 5s
				},
			},
			[]string{"operation"},
		),
		dedupLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftfs_blob_dedup_lookups_total",
				Help: "Content-hash lookups during writes by outcome",
			},
			[]string{"outcome"}, // "hit", "miss"
		),
		reapedBlobs: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "driftfs_reaper_blobs_reaped_total",
				Help: "Total number of orphaned blobs removed by the reaper",
			},
		),
		sweepDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "driftfs_reaper_sweep_duration_milliseconds",
				Help:    "Duration of orphan blob sweeps in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000, 60000},
			},
		),
		sweepErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "driftfs_reaper_sweep_errors_total",
				Help: "Total number of failed orphan blob sweeps",
			},
		),
	}
}

// ObserveOperation implements vfs.Metrics.
func (m *VFSMetrics) ObserveOperation(op string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000.0)
}

// ObserveDedup implements vfs.Metrics.
func (m *VFSMetrics) ObserveDedup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.dedupLookups.WithLabelValues(outcome).Inc()
}

// ObserveSweep implements vfs.ReaperMetrics.
func (m *VFSMetrics) ObserveSweep(reaped int, duration time.Duration, err error) {
	if err != nil {
		m.sweepErrors.Inc()
		return
	}
	m.reapedBlobs.Add(float64(reaped))
	m.sweepDuration.Observe(float64(duration.Microseconds()) / 1000.0)
}
