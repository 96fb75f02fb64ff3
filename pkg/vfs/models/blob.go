package models

import "time"

// Blob is a content-addressed, deduplicated byte payload.
//
// Blobs are shared across all users: two files with identical content, no
// matter who owns them, point at the same Blob record. The dedup key is
// Hash, the lowercase hex SHA-256 digest of the payload.
//
// RefCount tracks how many file nodes currently point at the blob. A blob
// whose count has reached zero holds no live references and is eligible
// for physical deletion (either synchronously on the delete path or by
// the orphan reaper).
type Blob struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Hash      string    `gorm:"uniqueIndex;not null;size:64" json:"hash"`
	Size      int64     `json:"size"`
	RefCount  int64     `gorm:"not null;default:0" json:"ref_count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Blob.
func (Blob) TableName() string {
	return "blobs"
}

// Orphaned reports whether the blob holds no live references.
func (b *Blob) Orphaned() bool {
	return b.RefCount <= 0
}
