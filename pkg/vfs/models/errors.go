package models

import "errors"

// Common errors for filesystem and identity operations.
var (
	// Node errors
	ErrNotFound         = errors.New("node not found")
	ErrAlreadyExists    = errors.New("node already exists")
	ErrParentNotFound   = errors.New("parent directory not found")
	ErrNameConflict     = errors.New("a node with that name already exists")
	ErrInvalidOperation = errors.New("invalid filesystem operation")

	// Blob errors
	ErrBlobNotFound  = errors.New("blob not found")
	ErrDuplicateBlob = errors.New("blob already exists")

	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)
