package sessionstore

import "errors"

var (
	ErrUnsupportedBackend = errors.New("unsupported session backend")
	ErrInvalidSession     = errors.New("invalid session record")
)
