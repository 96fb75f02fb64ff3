package vfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/driftfs/driftfs/internal/logger"
	pstore "github.com/driftfs/driftfs/pkg/payload/store"
	"github.com/driftfs/driftfs/pkg/vfs/models"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

// HashContent returns the content address for a payload: the lowercase hex
// encoding of its SHA-256 digest. Two payloads share a blob record exactly
// when their hashes are equal.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// reapBlobs removes orphaned blobs inside the caller's transaction: each
// blob's payload bytes go first, its record second. A record whose payload
// delete fails stays in place with a zero reference count, so the next
// reaper sweep finds it and retries. Payload deletes are idempotent, which
// makes a rollback after a partial reap harmless.
func reapBlobs(ctx context.Context, tx *store.GORMStore, payloads pstore.PayloadStore, orphans []models.Blob) (reaped, failed int, err error) {
	ids := make([]string, 0, len(orphans))
	for _, blob := range orphans {
		if err := payloads.Delete(ctx, blob.Hash); err != nil {
			logger.Warn("failed to delete orphaned payload, keeping record for next sweep",
				"hash", blob.Hash, "error", err)
			failed++
			continue
		}
		ids = append(ids, blob.ID)
	}
	if err := tx.DeleteBlobs(ctx, ids); err != nil {
		return 0, len(orphans), err
	}
	return len(ids), failed, nil
}
