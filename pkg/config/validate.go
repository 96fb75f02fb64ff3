package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Struct-level constraints are declared via `validate` tags on the config
// types. Cross-field rules that tags cannot express are checked here.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		return err
	}

	// Telemetry needs a collector endpoint when enabled
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}

	// Filesystem payload store needs a base path
	if cfg.Payload.Type == PayloadStoreFS && cfg.Payload.FS.BasePath == "" {
		return fmt.Errorf("payload store type is %q but fs.base_path is not configured", PayloadStoreFS)
	}

	// S3 payload store needs a bucket
	if cfg.Payload.Type == PayloadStoreS3 && cfg.Payload.S3.Bucket == "" {
		return fmt.Errorf("payload store type is %q but s3.bucket is not configured", PayloadStoreS3)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	return nil
}
