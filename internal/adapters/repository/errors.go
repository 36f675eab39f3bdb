package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound        = errors.New("leaderboard entry not found")
	ErrDuplicate       = errors.New("leaderboard entry already exists")
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")
	ErrInvalidEntry    = errors.New("invalid leaderboard entry")
	ErrUnsupportedKind = errors.New("unsupported leaderboard backend")
)
