package capture

import (
	"time"

	"github.com/okian/facepace/pkg/logger"
)

// Choreography times the prompts relative to the start of recording. Counting
// begins at Counting with a count of 1; every Tick the count advances until it
// reaches CountTo, and the following tick stops the recorder.
type Choreography struct {
	GetReady  time.Duration
	FaceGuide time.Duration
	OpenEyes  time.Duration
	Counting  time.Duration
	Tick      time.Duration
	CountTo   int
}

// DefaultChoreography is the standard 0/2/4/6 second prompt sequence with a
// five beat count.
func DefaultChoreography() Choreography {
	return Choreography{
		GetReady:  0,
		FaceGuide: 2 * time.Second,
		OpenEyes:  4 * time.Second,
		Counting:  6 * time.Second,
		Tick:      time.Second,
		CountTo:   5,
	}
}

// Total returns the time from start of recording to the automatic stop.
func (c Choreography) Total() time.Duration {
	return c.Counting + time.Duration(c.CountTo)*c.Tick
}

// Profile configures one capture variant.
type Profile struct {
	Mirror       bool
	JPEGQuality  int
	Constraints  Constraints
	Choreography Choreography
}

// DefaultProfile mirrors the selfie and encodes at quality 80.
func DefaultProfile() Profile {
	return Profile{
		Mirror:       true,
		JPEGQuality:  80,
		Constraints:  DefaultConstraints(),
		Choreography: DefaultChoreography(),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithProfile overrides the capture profile.
func WithProfile(p Profile) Option {
	return func(c *Controller) {
		if p.JPEGQuality <= 0 {
			p.JPEGQuality = DefaultProfile().JPEGQuality
		}
		if p.Choreography.CountTo <= 0 {
			p.Choreography.CountTo = DefaultChoreography().CountTo
		}
		if p.Choreography.Tick <= 0 {
			p.Choreography.Tick = DefaultChoreography().Tick
		}
		c.profile = p
	}
}

// WithClock replaces the timer source.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers a callback invoked after every state change.
func WithObserver(f func(Snapshot)) Option {
	return func(c *Controller) { c.observe = f }
}
