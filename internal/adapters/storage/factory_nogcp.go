//go:build !gcp

package storage

import (
	"context"
	"fmt"

	"github.com/okian/facepace/internal/config"
)

func newGCSStore(_ context.Context, _ *config.Config) (Store, error) {
	return nil, fmt.Errorf("%w: gcs is not enabled in this build (use -tags gcp)", ErrUnsupportedBackend)
}
