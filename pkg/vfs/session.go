package vfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// Session binds a provider to one user and tracks that user's working
// directory. The working directory is session state, not provider state:
// two sessions for the same user can sit in different directories without
// affecting each other.
type Session struct {
	provider *Provider
	userID   string

	mu      sync.Mutex
	workdir string
}

// NewSession creates a session rooted at "/".
func NewSession(provider *Provider, userID string) *Session {
	return &Session{
		provider: provider,
		userID:   userID,
		workdir:  Separator,
	}
}

// Workdir returns the session's current working directory.
func (s *Session) Workdir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workdir
}

// ChangeDirectory sets the working directory. The target must be an
// existing directory.
func (s *Session) ChangeDirectory(ctx context.Context, path string) error {
	resolved, err := ResolvePath(s.Workdir(), path)
	if err != nil {
		return err
	}
	if _, err := s.provider.store.FindDirectory(ctx, s.userID, resolved); err != nil {
		return fmt.Errorf("cannot change directory to %s: %w", resolved, err)
	}
	s.mu.Lock()
	s.workdir = resolved
	s.mu.Unlock()
	return nil
}

func (s *Session) ctx(ctx context.Context) context.Context {
	return WithWorkdir(ctx, s.Workdir())
}

// CreateDirectory creates a directory relative to the session workdir.
func (s *Session) CreateDirectory(ctx context.Context, path string) (*models.Node, error) {
	return s.provider.CreateDirectory(s.ctx(ctx), s.userID, path)
}

// DeleteDirectory removes a directory subtree relative to the session workdir.
func (s *Session) DeleteDirectory(ctx context.Context, path string) error {
	return s.provider.DeleteDirectory(s.ctx(ctx), s.userID, path)
}

// MoveDirectory moves a directory subtree.
func (s *Session) MoveDirectory(ctx context.Context, srcPath, dstPath string) error {
	return s.provider.MoveDirectory(s.ctx(ctx), s.userID, srcPath, dstPath)
}

// CopyDirectory copies a directory subtree.
func (s *Session) CopyDirectory(ctx context.Context, srcPath, dstPath string) error {
	return s.provider.CopyDirectory(s.ctx(ctx), s.userID, srcPath, dstPath)
}

// RenameDirectory renames a directory in place.
func (s *Session) RenameDirectory(ctx context.Context, path, newName string) error {
	return s.provider.RenameDirectory(s.ctx(ctx), s.userID, path, newName)
}

// List returns the children of a directory.
func (s *Session) List(ctx context.Context, path string) ([]*models.Node, error) {
	return s.provider.List(s.ctx(ctx), s.userID, path)
}

// WriteFile stores file content.
func (s *Session) WriteFile(ctx context.Context, path string, data []byte) (*models.Node, error) {
	return s.provider.WriteFile(s.ctx(ctx), s.userID, path, data)
}

// ReadFile returns a file's node and content.
func (s *Session) ReadFile(ctx context.Context, path string) (*models.Node, []byte, error) {
	return s.provider.ReadFile(s.ctx(ctx), s.userID, path)
}

// DeleteFile removes a file.
func (s *Session) DeleteFile(ctx context.Context, path string) error {
	return s.provider.DeleteFile(s.ctx(ctx), s.userID, path)
}

// CopyFile copies a file.
func (s *Session) CopyFile(ctx context.Context, srcPath, dstPath string) error {
	return s.provider.CopyFile(s.ctx(ctx), s.userID, srcPath, dstPath)
}

// MoveFile moves a file.
func (s *Session) MoveFile(ctx context.Context, srcPath, dstPath string) error {
	return s.provider.MoveFile(s.ctx(ctx), s.userID, srcPath, dstPath)
}

// RenameFile renames a file in place.
func (s *Session) RenameFile(ctx context.Context, path, newName string) error {
	return s.provider.RenameFile(s.ctx(ctx), s.userID, path, newName)
}

// GetInfo returns the node at a path, or nil when it does not exist.
func (s *Session) GetInfo(ctx context.Context, path string) (*models.Node, error) {
	return s.provider.GetInfo(s.ctx(ctx), s.userID, path)
}
