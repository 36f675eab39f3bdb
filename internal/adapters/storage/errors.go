package storage

import "errors"

var (
	ErrInvalidKey         = errors.New("invalid object key")
	ErrEmptyBlob          = errors.New("empty blob")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
	ErrNoPublicURL        = errors.New("no public url for backend")
)
