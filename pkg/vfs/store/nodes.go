package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// ============================================
// NODE OPERATIONS
// ============================================

// FindNode returns the node at the given canonical path for one owner.
func (s *GORMStore) FindNode(ctx context.Context, ownerID, path string) (*models.Node, error) {
	var node models.Node
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND path = ?", ownerID, path).
		First(&node).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNotFound)
	}
	return &node, nil
}

// FindDirectory returns the directory node at path, or ErrNotFound if the
// path is absent or occupied by a file.
func (s *GORMStore) FindDirectory(ctx context.Context, ownerID, path string) (*models.Node, error) {
	node, err := s.FindNode(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}
	if !node.IsDirectory {
		return nil, models.ErrNotFound
	}
	return node, nil
}

// FindFile returns the file node at path, or ErrNotFound if the path is
// absent or occupied by a directory.
func (s *GORMStore) FindFile(ctx context.Context, ownerID, path string) (*models.Node, error) {
	node, err := s.FindNode(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}
	if node.IsDirectory {
		return nil, models.ErrNotFound
	}
	return node, nil
}

// NodeExists reports whether any node occupies the given path.
func (s *GORMStore) NodeExists(ctx context.Context, ownerID, path string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Node{}).
		Where("owner_id = ? AND path = ?", ownerID, path).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Children returns the immediate children of a directory, directories
// first, then files, each group sorted by name. This is the listing order
// surfaced to clients.
func (s *GORMStore) Children(ctx context.Context, ownerID, parentID string) ([]*models.Node, error) {
	var nodes []*models.Node
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND parent_id = ?", ownerID, parentID).
		Order("is_directory DESC, name ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Subtree returns the node at basePath plus every transitive descendant,
// ordered by path so parents precede their children.
func (s *GORMStore) Subtree(ctx context.Context, ownerID, basePath string) ([]*models.Node, error) {
	// The subtree of the root is the user's entire tree; the generic LIKE
	// pattern would produce "//%" and match nothing.
	descendants := escapeLike(basePath) + "/%"
	if basePath == "/" {
		descendants = "/%"
	}
	var nodes []*models.Node
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND (path = ? OR path LIKE ? ESCAPE '\\')",
			ownerID, basePath, descendants).
		Order("path ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, models.ErrNotFound
	}
	return nodes, nil
}

// CreateNode inserts a new node, assigning an ID if the caller did not.
// A path collision surfaces as ErrAlreadyExists.
func (s *GORMStore) CreateNode(ctx context.Context, node *models.Node) error {
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(node).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveNode persists updated fields of an existing node.
func (s *GORMStore) SaveNode(ctx context.Context, node *models.Node) error {
	node.UpdatedAt = time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Node{}).
		Where("id = ?", node.ID).
		Select("Name", "Path", "ParentID", "BlobID", "Size", "MimeType", "UpdatedAt", "UpdatedBy").
		Updates(node)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return models.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateNodePath rewrites a single node's path column. Used by the bulk
// subtree rewrite, where name and parent stay untouched.
func (s *GORMStore) UpdateNodePath(ctx context.Context, nodeID, newPath, updatedBy string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Node{}).
		Where("id = ?", nodeID).
		Updates(map[string]any{
			"path":       newPath,
			"updated_at": time.Now().UTC(),
			"updated_by": updatedBy,
		})
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return models.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteNodes removes the given nodes by ID.
func (s *GORMStore) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Node{}).Error
}

// RootNode returns the root directory node for a user.
func (s *GORMStore) RootNode(ctx context.Context, ownerID string) (*models.Node, error) {
	return s.FindDirectory(ctx, ownerID, "/")
}

// escapeLike escapes SQL LIKE wildcards in a literal prefix so that paths
// containing '%' or '_' match themselves only.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
