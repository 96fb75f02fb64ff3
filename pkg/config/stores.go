package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/driftfs/driftfs/pkg/payload/store"
	payloadfs "github.com/driftfs/driftfs/pkg/payload/store/fs"
	payloadmemory "github.com/driftfs/driftfs/pkg/payload/store/memory"
	payloads3 "github.com/driftfs/driftfs/pkg/payload/store/s3"
)

// PayloadStoreType identifies a payload store backend.
type PayloadStoreType string

const (
	// PayloadStoreFS stores blob content on the local filesystem (default).
	PayloadStoreFS PayloadStoreType = "fs"

	// PayloadStoreS3 stores blob content in an S3-compatible object store.
	PayloadStoreS3 PayloadStoreType = "s3"

	// PayloadStoreMemory keeps blob content in memory. For testing only,
	// all content is lost on restart.
	PayloadStoreMemory PayloadStoreType = "memory"
)

// PayloadConfig configures where blob content is stored.
// Blob metadata (hashes, reference counts) always lives in the database,
// only the raw bytes go to the payload store.
type PayloadConfig struct {
	// Type selects the backend: "fs", "s3", or "memory".
	// Default: "fs"
	Type PayloadStoreType `mapstructure:"type" validate:"omitempty,oneof=fs s3 memory" yaml:"type"`

	// FS contains filesystem backend settings. Only used when Type is "fs".
	FS PayloadFSConfig `mapstructure:"fs" yaml:"fs"`

	// S3 contains S3 backend settings. Only used when Type is "s3".
	S3 payloads3.Config `mapstructure:"s3" yaml:"s3"`
}

// PayloadFSConfig contains filesystem payload store settings.
type PayloadFSConfig struct {
	// BasePath is the root directory for blob content.
	// Default: $XDG_DATA_HOME/driftfs/payloads (or ~/.local/share/driftfs/payloads)
	BasePath string `mapstructure:"base_path" yaml:"base_path"`

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool `mapstructure:"create_dir" yaml:"create_dir"`

	// DirMode is the permission mode for created directories (octal).
	DirMode uint32 `mapstructure:"dir_mode" yaml:"dir_mode,omitempty"`

	// FileMode is the permission mode for payload files (octal).
	FileMode uint32 `mapstructure:"file_mode" yaml:"file_mode,omitempty"`
}

// applyPayloadDefaults sets payload store defaults.
func applyPayloadDefaults(cfg *PayloadConfig) {
	if cfg.Type == "" {
		cfg.Type = PayloadStoreFS
	}
	if cfg.Type == PayloadStoreFS && cfg.FS.BasePath == "" {
		cfg.FS.BasePath = defaultPayloadPath()
		cfg.FS.CreateDir = true
	}
}

// defaultPayloadPath returns the default directory for filesystem blob storage.
func defaultPayloadPath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "driftfs", "payloads")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "driftfs-payloads")
	}
	return filepath.Join(home, ".local", "share", "driftfs", "payloads")
}

// NewPayloadStore creates a payload store instance from configuration.
func NewPayloadStore(ctx context.Context, cfg PayloadConfig) (store.PayloadStore, error) {
	switch cfg.Type {
	case PayloadStoreFS, "":
		return createFSPayloadStore(cfg.FS)
	case PayloadStoreS3:
		return createS3PayloadStore(ctx, cfg.S3)
	case PayloadStoreMemory:
		return payloadmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown payload store type: %q", cfg.Type)
	}
}

// createFSPayloadStore creates a filesystem-backed payload store.
func createFSPayloadStore(cfg PayloadFSConfig) (store.PayloadStore, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("filesystem payload store requires base_path to be set")
	}

	// Build config - fs.New() applies defaults for zero values
	fsCfg := payloadfs.Config{
		BasePath:  cfg.BasePath,
		CreateDir: cfg.CreateDir,
		DirMode:   os.FileMode(cfg.DirMode),
		FileMode:  os.FileMode(cfg.FileMode),
	}

	return payloadfs.New(fsCfg)
}

// createS3PayloadStore creates an S3-backed payload store.
func createS3PayloadStore(ctx context.Context, cfg payloads3.Config) (store.PayloadStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 payload store requires bucket to be set")
	}

	return payloads3.NewFromConfig(ctx, cfg)
}
