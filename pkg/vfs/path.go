// Package vfs implements a per-user hierarchical virtual filesystem backed
// by a content-addressed, deduplicated blob store.
//
// Paths are absolute, slash-separated strings. Directory and file nodes are
// stored as rows keyed by (owner, path); file contents live in a payload
// store addressed by SHA-256 hash with reference counting for deduplication.
package vfs

import (
	"fmt"
	"strings"

	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// Separator is the path separator used throughout the virtual filesystem.
const Separator = "/"

// NormalizePath canonicalizes a virtual path: collapses repeated separators
// and strips the trailing separator from everything but the root.
func NormalizePath(path string) string {
	if path == "" {
		return Separator
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", Separator)
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, Separator)
	}
	if path == "" {
		return Separator
	}
	return path
}

// ResolvePath turns a possibly relative path into a normalized absolute one.
// Relative paths are resolved against workdir, which must itself be absolute.
func ResolvePath(workdir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", models.ErrInvalidOperation)
	}
	if !strings.HasPrefix(path, Separator) {
		workdir = NormalizePath(workdir)
		if !strings.HasPrefix(workdir, Separator) {
			return "", fmt.Errorf("%w: working directory %q is not absolute", models.ErrInvalidOperation, workdir)
		}
		if workdir == Separator {
			path = Separator + path
		} else {
			path = workdir + Separator + path
		}
	}
	return NormalizePath(path), nil
}

// SplitPath breaks a normalized absolute path into its parent path and final
// name. The root splits into an empty parent and the root itself.
func SplitPath(path string) (parent, name string) {
	if path == Separator {
		return "", Separator
	}
	idx := strings.LastIndex(path, Separator)
	if idx == 0 {
		return Separator, path[1:]
	}
	return path[:idx], path[idx+1:]
}

// JoinPath appends a name to a directory path.
func JoinPath(dir, name string) string {
	if dir == Separator {
		return Separator + name
	}
	return dir + Separator + name
}

// ValidateName reports whether name is usable as a single path segment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", models.ErrInvalidOperation)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: name %q contains a path separator", models.ErrInvalidOperation, name)
	}
	return nil
}
