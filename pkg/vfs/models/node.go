package models

import (
	"fmt"
	"strings"
	"time"
)

// MimeTypeDirectory is the MIME type reported for directory nodes.
const MimeTypeDirectory = "inode/directory"

// Node is a single entry in a user's virtual filesystem tree.
//
// Directories and files share one record shape; IsDirectory discriminates
// the two cases. A file node points at exactly one Blob through BlobID,
// a directory node never carries content.
//
// Invariants enforced by the store and provider:
//   - Path is the canonical absolute path and is unique per owner.
//   - Path == parent path + "/" + Name; the per-user root "/" is the only
//     node with a nil ParentID.
//   - Sibling nodes never share a name (implied by path uniqueness).
type Node struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string    `gorm:"size:36;not null;index;uniqueIndex:idx_nodes_owner_path" json:"-"`
	ParentID    *string   `gorm:"size:36;index" json:"-"`
	Name        string    `gorm:"not null;size:255" json:"name"`
	Path        string    `gorm:"not null;size:4096;uniqueIndex:idx_nodes_owner_path" json:"path"`
	IsDirectory bool      `gorm:"not null" json:"is_directory"`
	BlobID      *string   `gorm:"size:36;index" json:"-"`
	Size        int64     `json:"size"`
	MimeType    string    `gorm:"size:255" json:"mime_type,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedBy   string    `gorm:"size:36" json:"-"`
	UpdatedBy   string    `gorm:"size:36" json:"-"`
}

// TableName returns the table name for Node.
func (Node) TableName() string {
	return "nodes"
}

// IsRoot reports whether the node is a per-user root directory.
func (n *Node) IsRoot() bool {
	return n.Path == "/"
}

// Validate checks structural invariants that do not require store access.
func (n *Node) Validate() error {
	if n.OwnerID == "" {
		return fmt.Errorf("node owner is required")
	}
	if n.Path == "" || !strings.HasPrefix(n.Path, "/") {
		return fmt.Errorf("node path %q is not absolute", n.Path)
	}
	if n.IsRoot() {
		if n.ParentID != nil {
			return fmt.Errorf("root node must not have a parent")
		}
		return nil
	}
	if n.Name == "" || strings.Contains(n.Name, "/") {
		return fmt.Errorf("invalid node name %q", n.Name)
	}
	if n.ParentID == nil {
		return fmt.Errorf("non-root node %q must have a parent", n.Path)
	}
	if !n.IsDirectory && n.BlobID == nil {
		return fmt.Errorf("file node %q must reference a blob", n.Path)
	}
	if n.IsDirectory && n.BlobID != nil {
		return fmt.Errorf("directory node %q must not reference a blob", n.Path)
	}
	return nil
}

// NewRoot returns the root directory node for a user. The caller assigns
// the ID before persisting.
func NewRoot(ownerID string) *Node {
	return &Node{
		OwnerID:     ownerID,
		Name:        "/",
		Path:        "/",
		IsDirectory: true,
		MimeType:    MimeTypeDirectory,
		CreatedBy:   ownerID,
		UpdatedBy:   ownerID,
	}
}
