package model

import "time"

// MetricKind names the value a leaderboard entry is ranked by.
type MetricKind string

const (
	MetricPaceOfAging   MetricKind = "pace_of_aging"
	MetricFunctionalAge MetricKind = "functional_age"
)

// LeaderboardEntry is a published result. Lower metric ranks higher.
type LeaderboardEntry struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"name"`
	MetricKind  MetricKind `json:"metric_kind"`
	Metric      float64    `json:"metric"`
	ImageRef    string     `json:"image_url"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Less orders entries by metric ascending, then creation time, then id.
func (e LeaderboardEntry) Less(o LeaderboardEntry) bool {
	if e.Metric != o.Metric {
		return e.Metric < o.Metric
	}
	if !e.CreatedAt.Equal(o.CreatedAt) {
		return e.CreatedAt.Before(o.CreatedAt)
	}
	return e.ID < o.ID
}
