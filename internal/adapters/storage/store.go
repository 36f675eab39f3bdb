// Package storage puts captured media into a content store and resolves the
// public reference the analysis service downloads it from.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/okian/facepace/internal/domain/model"
)

// Store is the content store collaborator.
type Store interface {
	// Upload writes blob under bucket/key and returns the stored path.
	Upload(ctx context.Context, bucket, key string, blob model.Blob) (string, error)
	// PublicURL resolves a stored path to a URL reachable by the analysis service.
	PublicURL(ctx context.Context, bucket, path string) (string, error)
}

// Closer is implemented by stores holding a client connection.
type Closer interface {
	Close() error
}

// cleanKey rejects keys that could escape the bucket.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func checkBucket(bucket string) error {
	if bucket == "" || strings.ContainsAny(bucket, "/\\") || bucket == "." || bucket == ".." {
		return fmt.Errorf("%w: bucket %q", ErrInvalidKey, bucket)
	}
	return nil
}
