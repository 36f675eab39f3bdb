//go:build gcp

package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/okian/facepace/internal/domain/model"
)

// GCSStore implements Store on Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	prefix string
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Prefix string
}

// NewGCSStore creates a GCS-backed store using application default credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, prefix: cfg.Prefix}, nil
}

// Upload writes the object with its content type.
func (s *GCSStore) Upload(ctx context.Context, bucket, key string, blob model.Blob) (string, error) {
	if blob.Empty() {
		return "", ErrEmptyBlob
	}
	if err := checkBucket(bucket); err != nil {
		return "", err
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	w := s.client.Bucket(bucket).Object(s.prefix + key).NewWriter(ctx)
	w.ContentType = blob.ContentType
	if _, err := w.Write(blob.Data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return key, nil
}

// PublicURL returns the storage.googleapis.com URL of the object.
func (s *GCSStore) PublicURL(_ context.Context, bucket, p string) (string, error) {
	if err := checkBucket(bucket); err != nil {
		return "", err
	}
	p, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return "https://storage.googleapis.com/" + bucket + "/" + escapePath(s.prefix+p), nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
