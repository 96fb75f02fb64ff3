//go:build integration

package vfs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftfs/driftfs/pkg/payload/store/memory"
	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// failingDeletePayloads wraps the in-memory store and fails a configurable
// number of Delete calls, standing in for flaky payload storage.
type failingDeletePayloads struct {
	*memory.Store
	failures int
}

func (s *failingDeletePayloads) Delete(ctx context.Context, key string) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("payload storage unavailable")
	}
	return s.Store.Delete(ctx, key)
}

func TestReaperSweep(t *testing.T) {
	p, payloads, _ := newTestProvider(t)
	ctx := context.Background()
	reaper := NewReaper(p.Store(), payloads, ReaperConfig{Interval: time.Hour})

	t.Run("clean store sweeps nothing", func(t *testing.T) {
		stats, err := reaper.Sweep(ctx)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}
		if stats.Scanned != 0 || stats.Reaped != 0 {
			t.Errorf("expected empty sweep, got %+v", stats)
		}
	})

	t.Run("reaps orphaned blob and payload", func(t *testing.T) {
		// Simulate a crash window: the payload and record exist but no
		// node references them.
		data := []byte("orphaned")
		hash := HashContent(data)
		if err := payloads.Put(ctx, hash, data); err != nil {
			t.Fatalf("failed to put payload: %v", err)
		}
		blob := &models.Blob{Hash: hash, Size: int64(len(data)), RefCount: 0}
		if err := p.Store().CreateBlob(ctx, blob); err != nil {
			t.Fatalf("failed to create blob: %v", err)
		}

		stats, err := reaper.Sweep(ctx)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}
		if stats.Scanned != 1 || stats.Reaped != 1 {
			t.Errorf("expected 1 scanned and reaped, got %+v", stats)
		}
		if _, err := p.Store().FindBlob(ctx, blob.ID); !errors.Is(err, models.ErrBlobNotFound) {
			t.Errorf("expected blob record gone, got %v", err)
		}
		if exists, _ := payloads.Exists(ctx, hash); exists {
			t.Error("expected payload to be deleted")
		}
	})

	t.Run("referenced blobs are untouched", func(t *testing.T) {
		userID := firstUserID(t, p)
		mustWrite(t, p, userID, "/live.txt", "live")

		stats, err := reaper.Sweep(ctx)
		if err != nil {
			t.Fatalf("sweep failed: %v", err)
		}
		if stats.Scanned != 0 {
			t.Errorf("expected no orphans, got %+v", stats)
		}
		if _, _, err := p.ReadFile(ctx, userID, "/live.txt"); err != nil {
			t.Errorf("expected live file to survive sweep: %v", err)
		}
	})
}

func TestReaperBatchSize(t *testing.T) {
	p, payloads, _ := newTestProvider(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		data := []byte(content)
		hash := HashContent(data)
		if err := payloads.Put(ctx, hash, data); err != nil {
			t.Fatalf("failed to put payload: %v", err)
		}
		blob := &models.Blob{Hash: hash, Size: int64(len(data)), RefCount: 0}
		if err := p.Store().CreateBlob(ctx, blob); err != nil {
			t.Fatalf("failed to create blob: %v", err)
		}
	}

	reaper := NewReaper(p.Store(), payloads, ReaperConfig{Interval: time.Hour, BatchSize: 2})
	stats, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if stats.Reaped != 2 {
		t.Errorf("expected batch of 2, got %+v", stats)
	}

	stats, err = reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if stats.Reaped != 1 {
		t.Errorf("expected remaining 1, got %+v", stats)
	}
	if payloads.Len() != 0 {
		t.Errorf("expected all payloads reaped, got %d", payloads.Len())
	}
}

func TestReaperRetriesAfterFailedPayloadDelete(t *testing.T) {
	payloads := &failingDeletePayloads{Store: memory.New(), failures: 1}
	p, userID := newTestProviderWith(t, payloads)
	ctx := context.Background()

	mustWrite(t, p, userID, "/doomed.txt", "doomed")
	hash := HashContent([]byte("doomed"))

	// The eager reap after the delete hits the failing payload store. The
	// file delete itself still succeeds, and the zero-reference record
	// stays behind so the orphan remains discoverable.
	if err := p.DeleteFile(ctx, userID, "/doomed.txt"); err != nil {
		t.Fatalf("failed to delete file: %v", err)
	}
	blob, err := p.Store().FindBlobByHash(ctx, hash)
	if err != nil {
		t.Fatalf("expected orphaned record to survive failed payload delete, got %v", err)
	}
	if blob.RefCount != 0 {
		t.Errorf("expected refcount 0, got %d", blob.RefCount)
	}
	if exists, _ := payloads.Exists(ctx, hash); !exists {
		t.Error("expected payload to remain after failed delete")
	}

	// Storage has recovered; the next sweep reclaims record and payload.
	reaper := NewReaper(p.Store(), payloads, ReaperConfig{Interval: time.Hour})
	stats, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if stats.Scanned != 1 || stats.Reaped != 1 {
		t.Errorf("expected the orphan reclaimed, got %+v", stats)
	}
	if _, err := p.Store().FindBlobByHash(ctx, hash); !errors.Is(err, models.ErrBlobNotFound) {
		t.Errorf("expected blob record gone, got %v", err)
	}
	if exists, _ := payloads.Exists(ctx, hash); exists {
		t.Error("expected payload deleted by sweep")
	}
}

func TestReaperSweepKeepsRecordOnPayloadError(t *testing.T) {
	payloads := &failingDeletePayloads{Store: memory.New(), failures: 1}
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	data := []byte("sticky")
	hash := HashContent(data)
	if err := payloads.Put(ctx, hash, data); err != nil {
		t.Fatalf("failed to put payload: %v", err)
	}
	blob := &models.Blob{Hash: hash, Size: int64(len(data)), RefCount: 0}
	if err := p.Store().CreateBlob(ctx, blob); err != nil {
		t.Fatalf("failed to create blob: %v", err)
	}

	reaper := NewReaper(p.Store(), payloads, ReaperConfig{Interval: time.Hour})
	stats, err := reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if stats.Scanned != 1 || stats.Reaped != 0 || stats.Errors != 1 {
		t.Errorf("expected failed reap to be counted, got %+v", stats)
	}
	if _, err := p.Store().FindBlob(ctx, blob.ID); err != nil {
		t.Errorf("expected record kept after failed payload delete, got %v", err)
	}

	stats, err = reaper.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if stats.Reaped != 1 || stats.Errors != 0 {
		t.Errorf("expected retry to reap the orphan, got %+v", stats)
	}
	if payloads.Len() != 0 {
		t.Errorf("expected payload reclaimed, got %d left", payloads.Len())
	}
}

func TestReaperRun(t *testing.T) {
	p, payloads, _ := newTestProvider(t)
	reaper := NewReaper(p.Store(), payloads, ReaperConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}

func TestReaperDefaults(t *testing.T) {
	var cfg ReaperConfig
	cfg.ApplyDefaults()
	if cfg.Interval != time.Hour {
		t.Errorf("expected default interval 1h, got %v", cfg.Interval)
	}
}

func firstUserID(t *testing.T, p *Provider) string {
	t.Helper()
	user, err := p.Store().GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("failed to get test user: %v", err)
	}
	return user.ID
}
