// Package store defines the interface for blob payload storage backends.
//
// A payload store holds raw, immutable file contents keyed by their
// content hash. Backends are interchangeable: a local filesystem store for
// single-node deployments, an in-memory store for testing, and an S3 store
// for object storage.
package store

import (
	"context"
	"errors"
)

var (
	// ErrBlobNotFound indicates the requested blob payload does not exist.
	ErrBlobNotFound = errors.New("blob payload not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("payload store is closed")
)

// PayloadStore stores immutable blob payloads addressed by content hash.
//
// Put is idempotent: payloads are content-addressed, so writing the same
// key twice stores identical bytes and the second write may be a no-op.
type PayloadStore interface {
	// Put stores the payload under the given content hash key.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the payload for a key. Returns ErrBlobNotFound if the
	// key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the payload for a key. Deleting a missing key is not
	// an error so reaping can be retried safely.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a payload is present for the key.
	Exists(ctx context.Context, key string) (bool, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
