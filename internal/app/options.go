package service

import (
	"time"

	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/adapters/sessionstore"
	"github.com/okian/facepace/internal/domain/pipeline"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/okian/facepace/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithUploader sets the blob uploader used by every session.
func WithUploader(u pipeline.Uploader) Option {
	return func(s *Service) {
		s.uploader = u
	}
}

// WithAnalyzer sets the analysis client.
func WithAnalyzer(a pipeline.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = a
	}
}

// WithSessionStore sets where session records are kept.
func WithSessionStore(st sessionstore.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.sessions = st
		}
	}
}

// WithLeaderboard sets the leaderboard store.
func WithLeaderboard(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.leaderboard = st
		}
	}
}

// WithPresenter sets the results presenter.
func WithPresenter(p *results.Presenter) Option {
	return func(s *Service) {
		if p != nil {
			s.presenter = p
		}
	}
}

// WithWorkerCount sets the number of upload workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the upload queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInflightGuardSize bounds how many concurrent analyses are tracked.
func WithInflightGuardSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.guardSize = size
		}
	}
}

// WithMaxUploadBytes caps the size of one uploaded blob.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxLeaderboardLimit caps the page size of TopN.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithIdleTimeout sets how long an untouched session pipeline stays in memory.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithUploadWait bounds how long Analyze waits for a session's uploads.
func WithUploadWait(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.uploadWait = d
		}
	}
}

// WithJanitorInterval sets how often idle pipelines are evicted.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.janitorInterval = d
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
