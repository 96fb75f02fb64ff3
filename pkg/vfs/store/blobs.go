package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// FindBlob retrieves a blob by ID.
func (s *GORMStore) FindBlob(ctx context.Context, id string) (*models.Blob, error) {
	var blob models.Blob
	if err := s.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrBlobNotFound)
	}
	return &blob, nil
}

// FindBlobByHash retrieves a blob by its content hash.
func (s *GORMStore) FindBlobByHash(ctx context.Context, hash string) (*models.Blob, error) {
	var blob models.Blob
	if err := s.db.WithContext(ctx).First(&blob, "hash = ?", hash).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrBlobNotFound)
	}
	return &blob, nil
}

// CreateBlob inserts a new blob record. The caller sets Hash, Size and the
// initial RefCount.
func (s *GORMStore) CreateBlob(ctx context.Context, blob *models.Blob) error {
	if blob.ID == "" {
		blob.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(blob).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: hash %s", models.ErrDuplicateBlob, blob.Hash)
		}
		return fmt.Errorf("failed to create blob: %w", err)
	}
	return nil
}

// AcquireBlob atomically increments a blob's reference count.
func (s *GORMStore) AcquireBlob(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.Blob{}).
		Where("id = ?", id).
		Update("ref_count", gorm.Expr("ref_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to acquire blob: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrBlobNotFound
	}
	return nil
}

// ReleaseBlob atomically decrements a blob's reference count and returns the
// count after the decrement. A non-positive result means the blob is orphaned
// and eligible for removal.
func (s *GORMStore) ReleaseBlob(ctx context.Context, id string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Blob{}).
		Where("id = ?", id).
		Update("ref_count", gorm.Expr("ref_count - ?", 1))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release blob: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, models.ErrBlobNotFound
	}

	var blob models.Blob
	if err := s.db.WithContext(ctx).Select("ref_count").First(&blob, "id = ?", id).Error; err != nil {
		return 0, convertNotFoundError(err, models.ErrBlobNotFound)
	}
	return blob.RefCount, nil
}

// DeleteBlob removes a blob record by ID.
func (s *GORMStore) DeleteBlob(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Blob{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete blob: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrBlobNotFound
	}
	return nil
}

// DeleteBlobs removes blob records by ID. Missing IDs are ignored so the
// reaper can race with eager deletion.
func (s *GORMStore) DeleteBlobs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Delete(&models.Blob{}, "id IN ?", ids).Error; err != nil {
		return fmt.Errorf("failed to delete blobs: %w", err)
	}
	return nil
}

// OrphanBlobs returns blobs whose reference count has dropped to zero or
// below. On Postgres the rows are locked so a concurrent writer cannot
// resurrect a blob between the scan and its deletion; SQLite serializes
// writers so the lock is unnecessary there.
func (s *GORMStore) OrphanBlobs(ctx context.Context, limit int) ([]models.Blob, error) {
	query := s.db.WithContext(ctx).Where("ref_count <= ?", 0).Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if s.supportsRowLocking() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var blobs []models.Blob
	if err := query.Find(&blobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list orphaned blobs: %w", err)
	}
	return blobs, nil
}

// OrphanBlobsByID returns the subset of the given blobs that still have a
// non-positive reference count, locking the rows like OrphanBlobs. IDs that
// were re-acquired or already reaped in the meantime drop out silently.
func (s *GORMStore) OrphanBlobsByID(ctx context.Context, ids []string) ([]models.Blob, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Where("id IN ? AND ref_count <= ?", ids, 0)
	if s.supportsRowLocking() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var blobs []models.Blob
	if err := query.Find(&blobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list orphaned blobs: %w", err)
	}
	return blobs, nil
}

// CountBlobs returns the total number of blob records.
func (s *GORMStore) CountBlobs(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Blob{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count blobs: %w", err)
	}
	return count, nil
}
