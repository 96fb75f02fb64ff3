package vfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	pstore "github.com/driftfs/driftfs/pkg/payload/store"
	"github.com/driftfs/driftfs/pkg/vfs/models"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

// Provider implements the filesystem operations over the node tree and the
// blob store. It holds no per-caller state: working directories travel in
// the context (see WithWorkdir), so a single Provider serves all users and
// sessions concurrently.
//
// Every mutating operation runs its metadata changes in one database
// transaction. Physical payload writes happen inside the transaction
// boundary so a failed commit can undo them; physical payload deletes are
// deferred until after a successful commit, with the reaper as backstop
// for deletes that fail.
type Provider struct {
	store    *store.GORMStore
	payloads pstore.PayloadStore
	metrics  Metrics
}

// Option configures a Provider.
type Option func(*Provider)

// WithMetrics attaches a metrics sink to the provider.
func WithMetrics(m Metrics) Option {
	return func(p *Provider) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewProvider creates a filesystem provider over the given metadata store
// and payload store.
func NewProvider(st *store.GORMStore, payloads pstore.PayloadStore, opts ...Option) *Provider {
	p := &Provider{
		store:    st,
		payloads: payloads,
		metrics:  NopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store exposes the underlying metadata store. Used by the reaper and the
// API layer for health checks.
func (p *Provider) Store() *store.GORMStore {
	return p.store
}

// Payloads exposes the underlying payload store.
func (p *Provider) Payloads() pstore.PayloadStore {
	return p.payloads
}

func (p *Provider) observe(op string, start time.Time, err error) {
	p.metrics.ObserveOperation(op, time.Since(start), err)
}

// resolve turns a caller-supplied path into a normalized absolute path
// using the working directory carried by the context.
func (p *Provider) resolve(ctx context.Context, path string) (string, error) {
	return ResolvePath(WorkdirFromContext(ctx), path)
}

// findParentDir looks up the parent directory for a target path inside tx.
// A missing or non-directory parent yields ErrParentNotFound.
func findParentDir(ctx context.Context, tx *store.GORMStore, userID, parentPath string) (*models.Node, error) {
	parent, err := tx.FindDirectory(ctx, userID, parentPath)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrParentNotFound, parentPath)
		}
		return nil, err
	}
	return parent, nil
}

// reapOrphans removes zero-reference blobs after a successful commit. The
// records were left in place by the mutation's transaction; here each row
// is re-checked and locked so a concurrent write that re-acquired the blob
// keeps it, then payload bytes and record are removed together. When the
// payload delete fails the record survives and the periodic reaper retries
// it on a later sweep.
func (p *Provider) reapOrphans(ctx context.Context, blobIDs []string) {
	if len(blobIDs) == 0 {
		return
	}
	err := p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		orphans, err := tx.OrphanBlobsByID(ctx, blobIDs)
		if err != nil {
			return err
		}
		_, _, err = reapBlobs(ctx, tx, p.payloads, orphans)
		return err
	})
	if err != nil {
		logger.Warn("failed to reap orphaned blobs, leaving records for the reaper",
			"error", err)
	}
}

// ============================================================================
// Directory operations
// ============================================================================

// CreateDirectory creates a single directory. The parent must already
// exist; the path must not.
func (p *Provider) CreateDirectory(ctx context.Context, userID, path string) (node *models.Node, err error) {
	start := time.Now()
	defer func() { p.observe("create_directory", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if path == Separator {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyExists, path)
	}
	parentPath, name := SplitPath(path)

	err = p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		exists, err := tx.NodeExists(ctx, userID, path)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", models.ErrAlreadyExists, path)
		}
		parent, err := findParentDir(ctx, tx, userID, parentPath)
		if err != nil {
			return err
		}
		node = &models.Node{
			OwnerID:     userID,
			ParentID:    &parent.ID,
			Name:        name,
			Path:        path,
			IsDirectory: true,
			MimeType:    models.MimeTypeDirectory,
			CreatedBy:   userID,
			UpdatedBy:   userID,
		}
		return tx.CreateNode(ctx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// DeleteDirectory removes a directory and everything beneath it. Blob
// references held by deleted files are released; blobs that drop to zero
// are removed along with their payloads. The root cannot be deleted.
func (p *Provider) DeleteDirectory(ctx context.Context, userID, path string) (err error) {
	start := time.Now()
	defer func() { p.observe("delete_directory", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return err
	}
	if path == Separator {
		return fmt.Errorf("%w: cannot delete the root directory", models.ErrInvalidOperation)
	}

	var orphanIDs []string
	err = p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		if _, err := tx.FindDirectory(ctx, userID, path); err != nil {
			return err
		}
		nodes, err := tx.Subtree(ctx, userID, path)
		if err != nil {
			return err
		}

		nodeIDs := make([]string, 0, len(nodes))
		for _, n := range nodes {
			nodeIDs = append(nodeIDs, n.ID)
			if n.IsDirectory || n.BlobID == nil {
				continue
			}
			count, err := tx.ReleaseBlob(ctx, *n.BlobID)
			if err != nil {
				return err
			}
			if count <= 0 {
				orphanIDs = append(orphanIDs, *n.BlobID)
			}
		}
		return tx.DeleteNodes(ctx, nodeIDs)
	})
	if err != nil {
		return err
	}

	p.reapOrphans(ctx, orphanIDs)
	logger.Debug("deleted directory", "user_id", userID, "path", path,
		"orphaned_blobs", len(orphanIDs))
	return nil
}

// MoveDirectory moves a directory subtree to a new location. The
// destination must not exist and its parent must. Moving a directory into
// itself or into one of its descendants is rejected, as is moving the root.
func (p *Provider) MoveDirectory(ctx context.Context, userID, srcPath, dstPath string) (err error) {
	start := time.Now()
	defer func() { p.observe("move_directory", start, err) }()

	srcPath, dstPath, err = p.resolvePair(ctx, srcPath, dstPath)
	if err != nil {
		return err
	}
	if srcPath == Separator {
		return fmt.Errorf("%w: cannot move the root directory", models.ErrInvalidOperation)
	}
	if err := checkSubtreeTarget(srcPath, dstPath); err != nil {
		return err
	}
	return p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		return moveSubtree(ctx, tx, userID, srcPath, dstPath)
	})
}

// CopyDirectory duplicates a directory subtree. Copied files share the
// originals' blobs; each copy takes one additional reference. Copying a
// directory into itself or into one of its descendants is rejected.
func (p *Provider) CopyDirectory(ctx context.Context, userID, srcPath, dstPath string) (err error) {
	start := time.Now()
	defer func() { p.observe("copy_directory", start, err) }()

	srcPath, dstPath, err = p.resolvePair(ctx, srcPath, dstPath)
	if err != nil {
		return err
	}
	if err := checkSubtreeTarget(srcPath, dstPath); err != nil {
		return err
	}

	return p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		if _, err := tx.FindDirectory(ctx, userID, srcPath); err != nil {
			return err
		}
		exists, err := tx.NodeExists(ctx, userID, dstPath)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", models.ErrAlreadyExists, dstPath)
		}
		dstParentPath, _ := SplitPath(dstPath)
		dstParent, err := findParentDir(ctx, tx, userID, dstParentPath)
		if err != nil {
			return err
		}

		nodes, err := tx.Subtree(ctx, userID, srcPath)
		if err != nil {
			return err
		}

		// Subtree rows come back ordered by path, so every parent is
		// processed before its children and the map below always holds
		// the new parent ID by the time a child needs it.
		newParents := map[string]string{}
		for _, n := range nodes {
			newPath := dstPath + strings.TrimPrefix(n.Path, srcPath)
			parentPath, name := SplitPath(newPath)

			var parentID string
			if n.Path == srcPath {
				parentID = dstParent.ID
			} else {
				parentID = newParents[parentPath]
			}

			clone := &models.Node{
				OwnerID:     userID,
				ParentID:    &parentID,
				Name:        name,
				Path:        newPath,
				IsDirectory: n.IsDirectory,
				BlobID:      n.BlobID,
				Size:        n.Size,
				MimeType:    n.MimeType,
				CreatedBy:   userID,
				UpdatedBy:   userID,
			}
			if err := tx.CreateNode(ctx, clone); err != nil {
				return err
			}
			if n.IsDirectory {
				newParents[newPath] = clone.ID
			} else if n.BlobID != nil {
				if err := tx.AcquireBlob(ctx, *n.BlobID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RenameDirectory changes a directory's name in place. The new name must
// be a single path segment and must not collide with a sibling.
func (p *Provider) RenameDirectory(ctx context.Context, userID, path, newName string) (err error) {
	start := time.Now()
	defer func() { p.observe("rename_directory", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return err
	}
	if path == Separator {
		return fmt.Errorf("%w: cannot rename the root directory", models.ErrInvalidOperation)
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	parentPath, _ := SplitPath(path)
	newPath := JoinPath(parentPath, newName)
	if newPath == path {
		return nil
	}

	return p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		exists, err := tx.NodeExists(ctx, userID, newPath)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", models.ErrNameConflict, newPath)
		}
		return moveSubtree(ctx, tx, userID, path, newPath)
	})
}

// List returns the direct children of a directory, directories first,
// each group sorted by name.
func (p *Provider) List(ctx context.Context, userID, path string) (nodes []*models.Node, err error) {
	start := time.Now()
	defer func() { p.observe("list", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	dir, err := p.store.FindDirectory(ctx, userID, path)
	if err != nil {
		return nil, err
	}
	return p.store.Children(ctx, userID, dir.ID)
}

// ============================================================================
// File operations
// ============================================================================

// WriteFile stores content at a path, creating the file or replacing its
// content. Content is deduplicated by SHA-256: identical payloads share one
// blob record and one stored payload, tracked by reference count.
func (p *Provider) WriteFile(ctx context.Context, userID, path string, data []byte) (node *models.Node, err error) {
	start := time.Now()
	defer func() { p.observe("write_file", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if path == Separator {
		return nil, fmt.Errorf("%w: cannot write to the root path", models.ErrInvalidOperation)
	}
	parentPath, name := SplitPath(path)

	hash := HashContent(data)
	var (
		wrotePayload bool
		orphanIDs    []string
	)
	err = p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		parent, err := findParentDir(ctx, tx, userID, parentPath)
		if err != nil {
			return err
		}

		var existing *models.Node
		if n, err := tx.FindNode(ctx, userID, path); err == nil {
			if n.IsDirectory {
				return fmt.Errorf("%w: %s is a directory", models.ErrNameConflict, path)
			}
			existing = n
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		// Acquire the new blob before releasing the old one so an
		// overwrite with identical content never drives the count to
		// zero in between.
		blob, err := tx.FindBlobByHash(ctx, hash)
		switch {
		case err == nil:
			p.metrics.ObserveDedup(true)
			if err := tx.AcquireBlob(ctx, blob.ID); err != nil {
				return err
			}
		case errors.Is(err, models.ErrBlobNotFound):
			blob = &models.Blob{Hash: hash, Size: int64(len(data)), RefCount: 1}
			// The insert runs in a savepoint: a concurrent write of
			// identical content can win the unique hash index, and on
			// Postgres the failed insert would otherwise poison the
			// enclosing transaction.
			createErr := tx.Transaction(ctx, func(inner *store.GORMStore) error {
				return inner.CreateBlob(ctx, blob)
			})
			switch {
			case createErr == nil:
				p.metrics.ObserveDedup(false)
				if err := p.payloads.Put(ctx, hash, data); err != nil {
					return fmt.Errorf("failed to store payload: %w", err)
				}
				wrotePayload = true
			case errors.Is(createErr, models.ErrDuplicateBlob):
				// Lost the race; acquire the winner's row instead.
				winner, err := tx.FindBlobByHash(ctx, hash)
				if err != nil {
					return err
				}
				if err := tx.AcquireBlob(ctx, winner.ID); err != nil {
					return err
				}
				p.metrics.ObserveDedup(true)
				blob = winner
			default:
				return createErr
			}
		default:
			return err
		}

		if existing != nil && existing.BlobID != nil {
			count, err := tx.ReleaseBlob(ctx, *existing.BlobID)
			if err != nil {
				return err
			}
			if count <= 0 {
				orphanIDs = append(orphanIDs, *existing.BlobID)
			}
		}

		if existing != nil {
			existing.BlobID = &blob.ID
			existing.Size = int64(len(data))
			existing.MimeType = MimeTypeForName(name)
			existing.UpdatedBy = userID
			if err := tx.SaveNode(ctx, existing); err != nil {
				return err
			}
			node = existing
			return nil
		}

		node = &models.Node{
			OwnerID:   userID,
			ParentID:  &parent.ID,
			Name:      name,
			Path:      path,
			BlobID:    &blob.ID,
			Size:      int64(len(data)),
			MimeType:  MimeTypeForName(name),
			CreatedBy: userID,
			UpdatedBy: userID,
		}
		return tx.CreateNode(ctx, node)
	})
	if err != nil {
		if wrotePayload {
			// The blob record rolled back with the transaction; drop the
			// stray payload so it does not linger unreferenced.
			if derr := p.payloads.Delete(ctx, hash); derr != nil {
				logger.Warn("failed to delete stray payload after rollback",
					"hash", hash, "error", derr)
			}
		}
		return nil, err
	}

	p.reapOrphans(ctx, orphanIDs)
	return node, nil
}

// ReadFile returns a file's node and its full content.
func (p *Provider) ReadFile(ctx context.Context, userID, path string) (node *models.Node, data []byte, err error) {
	start := time.Now()
	defer func() { p.observe("read_file", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	node, err = p.store.FindFile(ctx, userID, path)
	if err != nil {
		return nil, nil, err
	}
	if node.BlobID == nil {
		return nil, nil, fmt.Errorf("%w: file %s has no blob", models.ErrBlobNotFound, path)
	}
	blob, err := p.store.FindBlob(ctx, *node.BlobID)
	if err != nil {
		return nil, nil, err
	}
	data, err = p.payloads.Get(ctx, blob.Hash)
	if err != nil {
		if errors.Is(err, pstore.ErrBlobNotFound) {
			return nil, nil, fmt.Errorf("%w: payload %s missing", models.ErrBlobNotFound, blob.Hash)
		}
		return nil, nil, err
	}
	return node, data, nil
}

// DeleteFile removes a file and releases its blob reference. When the
// count drops to zero the blob record and payload are removed immediately;
// the reaper only backstops failed payload deletes.
func (p *Provider) DeleteFile(ctx context.Context, userID, path string) (err error) {
	start := time.Now()
	defer func() { p.observe("delete_file", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return err
	}

	var orphanIDs []string
	err = p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		node, err := tx.FindFile(ctx, userID, path)
		if err != nil {
			return err
		}
		if node.BlobID != nil {
			count, err := tx.ReleaseBlob(ctx, *node.BlobID)
			if err != nil {
				return err
			}
			if count <= 0 {
				orphanIDs = append(orphanIDs, *node.BlobID)
			}
		}
		return tx.DeleteNodes(ctx, []string{node.ID})
	})
	if err != nil {
		return err
	}

	p.reapOrphans(ctx, orphanIDs)
	return nil
}

// CopyFile duplicates a file node. The copy shares the original's blob and
// takes one additional reference; no payload bytes are copied.
func (p *Provider) CopyFile(ctx context.Context, userID, srcPath, dstPath string) (err error) {
	start := time.Now()
	defer func() { p.observe("copy_file", start, err) }()

	srcPath, dstPath, err = p.resolvePair(ctx, srcPath, dstPath)
	if err != nil {
		return err
	}

	return p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		src, err := tx.FindFile(ctx, userID, srcPath)
		if err != nil {
			return err
		}
		exists, err := tx.NodeExists(ctx, userID, dstPath)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", models.ErrAlreadyExists, dstPath)
		}
		dstParentPath, dstName := SplitPath(dstPath)
		dstParent, err := findParentDir(ctx, tx, userID, dstParentPath)
		if err != nil {
			return err
		}
		if src.BlobID != nil {
			if err := tx.AcquireBlob(ctx, *src.BlobID); err != nil {
				return err
			}
		}
		clone := &models.Node{
			OwnerID:   userID,
			ParentID:  &dstParent.ID,
			Name:      dstName,
			Path:      dstPath,
			BlobID:    src.BlobID,
			Size:      src.Size,
			MimeType:  src.MimeType,
			CreatedBy: userID,
			UpdatedBy: userID,
		}
		return tx.CreateNode(ctx, clone)
	})
}

// MoveFile relocates a file node. The blob reference moves with the node,
// so the count is unchanged.
func (p *Provider) MoveFile(ctx context.Context, userID, srcPath, dstPath string) (err error) {
	start := time.Now()
	defer func() { p.observe("move_file", start, err) }()

	srcPath, dstPath, err = p.resolvePair(ctx, srcPath, dstPath)
	if err != nil {
		return err
	}
	if srcPath == dstPath {
		return nil
	}

	return p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		src, err := tx.FindFile(ctx, userID, srcPath)
		if err != nil {
			return err
		}
		exists, err := tx.NodeExists(ctx, userID, dstPath)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", models.ErrAlreadyExists, dstPath)
		}
		dstParentPath, dstName := SplitPath(dstPath)
		dstParent, err := findParentDir(ctx, tx, userID, dstParentPath)
		if err != nil {
			return err
		}
		src.ParentID = &dstParent.ID
		src.Name = dstName
		src.Path = dstPath
		src.UpdatedBy = userID
		return tx.SaveNode(ctx, src)
	})
}

// RenameFile changes a file's name within its directory. A sibling with
// the new name causes ErrNameConflict and leaves both nodes untouched.
func (p *Provider) RenameFile(ctx context.Context, userID, path, newName string) (err error) {
	start := time.Now()
	defer func() { p.observe("rename_file", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	parentPath, _ := SplitPath(path)
	newPath := JoinPath(parentPath, newName)
	if newPath == path {
		return nil
	}

	return p.store.Transaction(ctx, func(tx *store.GORMStore) error {
		node, err := tx.FindFile(ctx, userID, path)
		if err != nil {
			return err
		}
		exists, err := tx.NodeExists(ctx, userID, newPath)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", models.ErrNameConflict, newPath)
		}
		node.Name = newName
		node.Path = newPath
		node.MimeType = MimeTypeForName(newName)
		node.UpdatedBy = userID
		return tx.SaveNode(ctx, node)
	})
}

// GetInfo returns the node at a path, or nil without an error when the
// path does not exist.
func (p *Provider) GetInfo(ctx context.Context, userID, path string) (node *models.Node, err error) {
	start := time.Now()
	defer func() { p.observe("get_info", start, err) }()

	path, err = p.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	node, err = p.store.FindNode(ctx, userID, path)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (p *Provider) resolvePair(ctx context.Context, srcPath, dstPath string) (string, string, error) {
	src, err := p.resolve(ctx, srcPath)
	if err != nil {
		return "", "", err
	}
	dst, err := p.resolve(ctx, dstPath)
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// checkSubtreeTarget rejects a destination equal to the source or nested
// inside it. Moving or copying a directory into its own subtree would
// produce an unbounded path rewrite.
func checkSubtreeTarget(srcPath, dstPath string) error {
	if dstPath == srcPath {
		return fmt.Errorf("%w: source and destination are the same", models.ErrInvalidOperation)
	}
	prefix := srcPath + Separator
	if srcPath == Separator {
		prefix = Separator
	}
	if strings.HasPrefix(dstPath, prefix) {
		return fmt.Errorf("%w: destination %s is inside source %s",
			models.ErrInvalidOperation, dstPath, srcPath)
	}
	return nil
}

// moveSubtree relocates the directory at srcPath to dstPath inside tx,
// rewriting the paths of every descendant.
func moveSubtree(ctx context.Context, tx *store.GORMStore, userID, srcPath, dstPath string) error {
	src, err := tx.FindDirectory(ctx, userID, srcPath)
	if err != nil {
		return err
	}
	exists, err := tx.NodeExists(ctx, userID, dstPath)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", models.ErrAlreadyExists, dstPath)
	}
	dstParentPath, dstName := SplitPath(dstPath)
	dstParent, err := findParentDir(ctx, tx, userID, dstParentPath)
	if err != nil {
		return err
	}

	nodes, err := tx.Subtree(ctx, userID, srcPath)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		newPath := dstPath + strings.TrimPrefix(n.Path, srcPath)
		if n.ID == src.ID {
			src.ParentID = &dstParent.ID
			src.Name = dstName
			src.Path = newPath
			src.UpdatedBy = userID
			if err := tx.SaveNode(ctx, src); err != nil {
				return err
			}
			continue
		}
		if err := tx.UpdateNodePath(ctx, n.ID, newPath, userID); err != nil {
			return err
		}
	}
	return nil
}
