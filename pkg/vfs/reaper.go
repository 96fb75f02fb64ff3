package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	pstore "github.com/driftfs/driftfs/pkg/payload/store"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

// ReaperConfig configures the orphan blob reaper.
type ReaperConfig struct {
	// Interval between sweeps.
	// Default: 1h
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// BatchSize caps how many orphaned blobs one sweep processes.
	// 0 means unlimited.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// ApplyDefaults fills in default values for unset fields.
func (c *ReaperConfig) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// ReaperStats summarizes one sweep.
type ReaperStats struct {
	Scanned int // orphaned blob records found
	Reaped  int // blob records removed
	Errors  int // payload deletions that failed
}

// Reaper periodically removes blob records whose reference count has
// dropped to zero, along with their stored payloads.
//
// Providers delete orphaned blobs eagerly, so under normal operation a
// sweep finds nothing. The reaper exists as backstop for the failure
// windows eager deletion cannot cover: a payload delete that failed after
// commit, or a crash between releasing a reference and removing the blob.
type Reaper struct {
	store    *store.GORMStore
	payloads pstore.PayloadStore
	config   ReaperConfig
	metrics  ReaperMetrics
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithReaperMetrics attaches a metrics sink to the reaper.
func WithReaperMetrics(m ReaperMetrics) ReaperOption {
	return func(r *Reaper) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewReaper creates a reaper over the given stores.
func NewReaper(st *store.GORMStore, payloads pstore.PayloadStore, config ReaperConfig, opts ...ReaperOption) *Reaper {
	config.ApplyDefaults()
	r := &Reaper{
		store:    st,
		payloads: payloads,
		config:   config,
		metrics:  NopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps on the configured interval until the context is cancelled.
// Sweep errors are logged and the loop continues.
func (r *Reaper) Run(ctx context.Context) {
	logger.Info("orphan blob reaper started", "interval", r.config.Interval)
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("orphan blob reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				logger.Error("orphan blob sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes orphaned blobs once. Blob records are deleted inside a
// transaction holding row locks where the database supports them, so a
// concurrent write cannot re-acquire a blob mid-sweep. Payload bytes are
// deleted before the record: a blob whose payload delete fails keeps its
// record, so the next sweep finds it again and retries.
func (r *Reaper) Sweep(ctx context.Context) (stats ReaperStats, err error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveSweep(stats.Reaped, time.Since(start), err)
	}()

	err = r.store.Transaction(ctx, func(tx *store.GORMStore) error {
		orphans, err := tx.OrphanBlobs(ctx, r.config.BatchSize)
		if err != nil {
			return err
		}
		stats.Scanned = len(orphans)
		if len(orphans) == 0 {
			return nil
		}
		stats.Reaped, stats.Errors, err = reapBlobs(ctx, tx, r.payloads, orphans)
		return err
	})
	if err != nil {
		stats.Reaped = 0
		return stats, fmt.Errorf("failed to reap orphaned blobs: %w", err)
	}

	if stats.Scanned > 0 {
		logger.Info("orphan blob sweep finished",
			"scanned", stats.Scanned, "reaped", stats.Reaped,
			"errors", stats.Errors, "duration", time.Since(start))
	}
	return stats, nil
}
