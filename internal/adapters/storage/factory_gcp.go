//go:build gcp

package storage

import (
	"context"

	"github.com/okian/facepace/internal/config"
)

func newGCSStore(ctx context.Context, cfg *config.Config) (Store, error) {
	return NewGCSStore(ctx, GCSStoreConfig{Prefix: cfg.GCSPrefix})
}
