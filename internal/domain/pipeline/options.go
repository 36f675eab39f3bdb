package pipeline

import (
	"time"

	"github.com/okian/facepace/internal/domain/dedupe"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGuard shares an in-flight guard across pipelines. Keys are session ids.
func WithGuard(d dedupe.Deduper) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.guard = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver receives a session snapshot after every change.
func WithObserver(f func(model.Session)) Option {
	return func(p *Pipeline) { p.observer = f }
}

// WithUploadWait bounds how long Submit waits for pending uploads.
// Zero waits until the caller's context ends.
func WithUploadWait(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.uploadWait = d
		}
	}
}

// WithSession resumes from a stored session record.
func WithSession(s *model.Session) Option {
	return func(p *Pipeline) { p.resume = s }
}
