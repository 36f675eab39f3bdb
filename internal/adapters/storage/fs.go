package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/facepace/internal/domain/model"
)

// MediaPrefix is the route under which the service serves FileStore content.
const MediaPrefix = "/media/"

// FileStore keeps objects under baseDir/<bucket>/<key> and serves them from
// the service itself.
type FileStore struct {
	baseDir string
	baseURL string
}

// NewFileStore creates the base directory if needed. baseURL is the externally
// reachable root of the service, e.g. "http://localhost:9080".
func NewFileStore(baseDir, baseURL string) (*FileStore, error) {
	//nolint:gosec // G301: media is served publicly
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure media dir: %w", err)
	}
	return &FileStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes the blob atomically through a temp file.
func (s *FileStore) Upload(ctx context.Context, bucket, key string, blob model.Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
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

	target := filepath.Join(s.baseDir, bucket, filepath.FromSlash(key))
	//nolint:gosec // G301: media is served publicly
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create bucket dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(blob.Data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	//nolint:gosec // G302: media is served publicly
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("commit %s: %w", key, err)
	}
	return key, nil
}

// PublicURL returns the /media/ URL of the object.
func (s *FileStore) PublicURL(_ context.Context, bucket, p string) (string, error) {
	if s.baseURL == "" {
		return "", ErrNoPublicURL
	}
	if err := checkBucket(bucket); err != nil {
		return "", err
	}
	p, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return s.baseURL + MediaPrefix + url.PathEscape(bucket) + "/" + escapePath(p), nil
}

// Handler serves stored objects. Mount it at MediaPrefix.
func (s *FileStore) Handler() http.Handler {
	return http.StripPrefix(MediaPrefix, http.FileServer(noDirFS{http.Dir(s.baseDir)}))
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// noDirFS hides directory listings.
type noDirFS struct{ fs http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
