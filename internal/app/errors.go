package service

import "errors"

var (
	ErrNotStarted        = errors.New("service not started")
	ErrMissingDependency = errors.New("missing service dependency")
	ErrUploadTooLarge    = errors.New("upload exceeds size limit")
	ErrInvalidLimit      = errors.New("invalid leaderboard limit")
)
