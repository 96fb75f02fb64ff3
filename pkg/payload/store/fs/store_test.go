package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftfs/driftfs/pkg/payload/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewWithPath(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("empty base path fails", func(t *testing.T) {
		if _, err := New(Config{}); err == nil {
			t.Error("expected error for empty base path")
		}
	})

	t.Run("creates base directory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "payloads")
		if _, err := NewWithPath(base); err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			t.Errorf("expected base directory to exist: %v", err)
		}
	})

	t.Run("base path is a file fails", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(base, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := New(Config{BasePath: base, CreateDir: false}); err == nil {
			t.Error("expected error when base path is a file")
		}
	})
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("hello world")

	if err := s.Put(ctx, "abcdef", data); err != nil {
		t.Fatalf("failed to put payload: %v", err)
	}

	got, err := s.Get(ctx, "abcdef")
	if err != nil {
		t.Fatalf("failed to get payload: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}

	t.Run("put is idempotent", func(t *testing.T) {
		if err := s.Put(ctx, "abcdef", data); err != nil {
			t.Errorf("second put failed: %v", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "ffffff")
		if !errors.Is(err, store.ErrBlobNotFound) {
			t.Errorf("expected ErrBlobNotFound, got %v", err)
		}
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		if err := s.Put(ctx, "../escape", data); err == nil {
			t.Error("expected error for key with path characters")
		}
	})
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "abcdef", []byte("data")); err != nil {
		t.Fatalf("failed to put payload: %v", err)
	}
	if err := s.Delete(ctx, "abcdef"); err != nil {
		t.Fatalf("failed to delete payload: %v", err)
	}

	exists, err := s.Exists(ctx, "abcdef")
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if exists {
		t.Error("expected payload to be gone")
	}

	t.Run("delete missing key is not an error", func(t *testing.T) {
		if err := s.Delete(ctx, "abcdef"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if err := s.Put(ctx, "abcdef", []byte("x")); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.Get(ctx, "abcdef"); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.HealthCheck(ctx); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
