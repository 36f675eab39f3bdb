package storage

import (
	"context"
	"fmt"

	"github.com/okian/facepace/internal/config"
)

// NewFromConfig builds the store selected by cfg.StorageBackend.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.StorageFS:
		return NewFileStore(cfg.StorageDir, cfg.PublicBaseURL)
	case config.StorageS3:
		return NewS3Store(ctx, S3StoreConfig{
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	case config.StorageGCS:
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.StorageBackend)
	}
}
