package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// DefaultBucket is the bucket media is written to unless configured otherwise.
const DefaultBucket = "photos"

var extensions = map[string]string{
	"video/webm":      ".webm",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Uploader stores one artifact and resolves its public reference.
type Uploader struct {
	store  Store
	bucket string
	newID  func() string
	now    func() time.Time
	logger logger.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithBucket overrides DefaultBucket.
func WithBucket(bucket string) UploaderOption {
	return func(u *Uploader) {
		if bucket != "" {
			u.bucket = bucket
		}
	}
}

// WithIDGenerator overrides the key id generator.
func WithIDGenerator(f func() string) UploaderOption {
	return func(u *Uploader) {
		if f != nil {
			u.newID = f
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) UploaderOption {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUploader wraps store.
func NewUploader(store Store, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		store:  store,
		bucket: DefaultBucket,
		newID:  uuid.NewString,
		now:    time.Now,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.Named("uploader")
	return u
}

// Key returns the object key for a new artifact of kind, e.g.
// "video-<id>.webm" or "photo-<id>.jpg".
func Key(kind model.AssetKind, contentType, id string) string {
	ext, ok := extensions[contentType]
	prefix := "photo-"
	if kind == model.AssetVideo {
		prefix = "video-"
		if !ok {
			ext = ".webm"
		}
	} else if !ok {
		ext = ".jpg"
	}
	return prefix + id + ext
}

// Upload stores blob and returns the immutable asset record. Store failures
// wrap model.ErrStorage; reference failures wrap model.ErrURLResolution.
func (u *Uploader) Upload(ctx context.Context, kind model.AssetKind, blob model.Blob) (*model.UploadedAsset, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", model.ErrStorage, kind)
	}
	key := Key(kind, blob.ContentType, u.newID())

	path, err := u.store.Upload(ctx, u.bucket, key, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrStorage, key, err)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s: store returned no path", model.ErrStorage, key)
	}

	ref, err := u.store.PublicURL(ctx, u.bucket, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrURLResolution, path, err)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: %s", model.ErrURLResolution, path)
	}

	u.logger.Debug(ctx, "asset stored",
		logger.String("kind", string(kind)),
		logger.String("path", path),
		logger.Int64("bytes", blob.Size()),
	)
	return &model.UploadedAsset{
		Kind:       kind,
		RemoteRef:  ref,
		Path:       path,
		SizeBytes:  blob.Size(),
		UploadedAt: u.now().UTC(),
	}, nil
}
