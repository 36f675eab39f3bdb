package results

import "errors"

var (
	ErrNoReport    = errors.New("no analysis report")
	ErrNoMetric    = errors.New("report has no rankable metric")
	ErrInvalidName = errors.New("invalid display name")
)
