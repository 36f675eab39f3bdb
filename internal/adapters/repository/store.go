// Package repository stores published leaderboard entries and answers
// ranked reads. Lower metric ranks higher; rank is the 1-based position.
package repository

import (
	"context"
	"math"

	"github.com/okian/facepace/internal/domain/model"
)

// Ranked is an entry with its current position.
type Ranked struct {
	model.LeaderboardEntry
	Rank int `json:"rank"`
}

// Store provides read/write access to the leaderboard.
type Store interface {
	// Insert publishes e. Returns ErrDuplicate if the id already exists.
	Insert(ctx context.Context, e model.LeaderboardEntry) error

	// Rank returns the entry with its current rank.
	// Returns ErrNotFound if the id is unknown.
	Rank(ctx context.Context, id string) (Ranked, error)

	// TopN returns the first n entries ordered by metric ascending.
	TopN(ctx context.Context, n int) ([]Ranked, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)

	Close() error
}

func validate(e model.LeaderboardEntry) error {
	switch {
	case e.ID == "":
		return ErrInvalidEntry
	case math.IsNaN(e.Metric) || math.IsInf(e.Metric, 0):
		return ErrInvalidEntry
	case e.MetricKind != model.MetricPaceOfAging && e.MetricKind != model.MetricFunctionalAge:
		return ErrInvalidEntry
	}
	return nil
}
