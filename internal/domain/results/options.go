package results

import "time"

// Option configures a Presenter.
type Option func(*Presenter)

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Presenter) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(f func() string) Option {
	return func(p *Presenter) {
		if f != nil {
			p.newID = f
		}
	}
}
