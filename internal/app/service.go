// Package service wires the capture pipelines, stores and analyzer together
// and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/facepace/internal/adapters/mq/queue"
	"github.com/okian/facepace/internal/adapters/mq/worker"
	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/adapters/sessionstore"
	"github.com/okian/facepace/internal/domain/dedupe"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/pipeline"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/okian/facepace/pkg/logger"
	"github.com/okian/facepace/pkg/metrics"
)

const (
	defaultTopN    = 10
	persistTimeout = 5 * time.Second
)

type live struct {
	p        *pipeline.Pipeline
	lastSeen time.Time
}

// Service owns the upload workers and one pipeline per active session.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	uploader    pipeline.Uploader
	analyzer    pipeline.Analyzer
	sessions    sessionstore.Store
	leaderboard repository.Store
	presenter   *results.Presenter
	guard       dedupe.Deduper

	// Upload execution
	queue *queue.InMemoryQueue
	pool  *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	guardSize       int
	maxUploadBytes  int64
	maxLimit        int
	idleTimeout     time.Duration
	uploadWait      time.Duration
	janitorInterval time.Duration
	newID           func() string
	now             func() time.Time

	// State
	pipelines map[string]*live
	publishMu sync.Mutex
	started   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	janitorWG sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. Uploader and analyzer have no defaults and must
// be supplied before Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       1024,
		guardSize:       10_000,
		maxUploadBytes:  50 << 20,
		maxLimit:        100,
		idleTimeout:     time.Hour,
		janitorInterval: time.Minute,
		newID:           uuid.NewString,
		now:             time.Now,
		pipelines:       make(map[string]*live),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = sessionstore.NewMemoryStore(sessionstore.WithTTL(s.idleTimeout))
	}
	if s.leaderboard == nil {
		s.leaderboard = repository.NewTreapStore()
	}
	if s.presenter == nil {
		s.presenter = results.NewPresenter(results.FullProfile())
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")
	return s
}

// Start creates the upload queue and workers. Background jobs run on a
// context detached from ctx so request cancellation never aborts an upload.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.uploader == nil || s.analyzer == nil {
		return fmt.Errorf("%w: uploader and analyzer are required", ErrMissingDependency)
	}

	s.logger.Info(ctx, "starting facepace service...")

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.guard = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.guardSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.WithLogger(s.logger))
	s.pool.Start(s.runCtx)

	s.stopCh = make(chan struct{})
	s.janitorWG.Add(1)
	go s.janitor()

	s.started = true
	s.logger.Info(ctx, "facepace service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("inflightGuardSize", s.guardSize),
	)
	return nil
}

// Stop drains accepted uploads, then closes the stores.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool := s.pool
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping facepace service...")
	s.janitorWG.Wait()

	var errs []error
	if err := pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()

	if err := s.leaderboard.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close leaderboard: %w", err))
	}
	if err := s.sessions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}

	s.logger.Info(ctx, "facepace service stopped")
	return errors.Join(errs...)
}

// CreateSession opens a new capture session.
func (s *Service) CreateSession(ctx context.Context) (model.Session, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return model.Session{}, ErrNotStarted
	}
	id := s.newID()
	p := s.newPipeline(id, nil)
	s.pipelines[id] = &live{p: p, lastSeen: s.now()}
	s.mu.Unlock()

	snap := p.Session()
	if err := s.sessions.Put(ctx, &snap); err != nil {
		s.mu.Lock()
		delete(s.pipelines, id)
		s.mu.Unlock()
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	metrics.RecordSessionCreated()
	s.logger.Info(ctx, "session created", logger.String("session_id", id))
	return snap, nil
}

// GetSession returns the current session record.
func (s *Service) GetSession(ctx context.Context, id string) (model.Session, error) {
	p, err := s.pipelineFor(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	snap := p.Session()
	if stored, err := s.sessions.Get(ctx, id); err == nil {
		snap.LeaderboardID = stored.LeaderboardID
	}
	return snap, nil
}

// UploadAsset queues the upload of one artifact and returns the session as
// it stands after the hand-off.
func (s *Service) UploadAsset(ctx context.Context, id string, kind model.AssetKind, blob model.Blob) (model.Session, error) {
	if int64(len(blob.Data)) > s.maxUploadBytes {
		return model.Session{}, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, len(blob.Data))
	}
	p, err := s.pipelineFor(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	if err := p.StartUpload(ctx, kind, blob); err != nil {
		return model.Session{}, err
	}
	return p.Session(), nil
}

// Analyze waits for both uploads and requests the analysis. The caller's
// context bounds only this wait; the upload jobs keep running without it.
func (s *Service) Analyze(ctx context.Context, id string, age int) (results.View, error) {
	p, err := s.pipelineFor(ctx, id)
	if err != nil {
		return results.View{}, err
	}
	report, err := p.Submit(ctx, age)
	if err != nil {
		return results.View{}, err
	}
	return s.presenter.View(report, imageRef(p.Session()))
}

// Report returns the finished report of a session.
func (s *Service) Report(ctx context.Context, id string) (results.View, error) {
	p, err := s.pipelineFor(ctx, id)
	if err != nil {
		return results.View{}, err
	}
	report, ok := p.Report()
	if !ok {
		return results.View{}, results.ErrNoReport
	}
	return s.presenter.View(report, imageRef(p.Session()))
}

// Publish puts the session's result on the leaderboard under name. Publishing
// the same session twice returns the first entry.
func (s *Service) Publish(ctx context.Context, id, name string) (repository.Ranked, error) {
	p, err := s.pipelineFor(ctx, id)
	if err != nil {
		return repository.Ranked{}, err
	}
	report, ok := p.Report()
	if !ok {
		return repository.Ranked{}, results.ErrNoReport
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	stored, err := s.sessions.Get(ctx, id)
	if err != nil {
		return repository.Ranked{}, err
	}
	if stored.LeaderboardID != "" {
		return s.leaderboard.Rank(ctx, stored.LeaderboardID)
	}

	entry, err := s.presenter.Candidate(report, imageRef(p.Session()), name)
	if err != nil {
		return repository.Ranked{}, err
	}
	if err := s.leaderboard.Insert(ctx, entry); err != nil {
		return repository.Ranked{}, fmt.Errorf("insert entry: %w", err)
	}

	stored.LeaderboardID = entry.ID
	if err := s.sessions.Put(ctx, stored); err != nil {
		s.logger.Warn(ctx, "failed to link leaderboard entry",
			logger.String("session_id", id),
			logger.String("entry_id", entry.ID),
			logger.Error(err),
		)
	}
	s.logger.Info(ctx, "result published",
		logger.String("session_id", id),
		logger.String("entry_id", entry.ID),
		logger.String("metric_kind", string(entry.MetricKind)),
	)
	return s.leaderboard.Rank(ctx, entry.ID)
}

// TopN returns the best n entries. Zero selects the default page size.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Ranked, error) {
	switch {
	case n < 0:
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	case n == 0:
		n = defaultTopN
	case n > s.maxLimit:
		n = s.maxLimit
	}
	return s.leaderboard.TopN(ctx, n)
}

// Rank returns one entry with its position.
func (s *Service) Rank(ctx context.Context, entryID string) (repository.Ranked, error) {
	return s.leaderboard.Rank(ctx, entryID)
}

// ProxyAnalyze forwards a request built by the client straight to the
// analysis service, outside of any session.
func (s *Service) ProxyAnalyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("%w: analyzer", ErrMissingDependency)
	}
	return s.analyzer.Analyze(ctx, req)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"liveSessions": len(s.pipelines),
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len(ctx)
	stats["analysesInFlight"] = s.guard.Size()
	if n, err := s.leaderboard.Count(ctx); err == nil {
		stats["leaderboardEntries"] = n
		metrics.UpdateLeaderboardEntries(n)
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	return stats
}

// pipelineFor returns the live pipeline of id, rebuilding it from the
// session store when it was evicted or created by another instance.
func (s *Service) pipelineFor(ctx context.Context, id string) (*pipeline.Pipeline, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if l, ok := s.pipelines[id]; ok {
		l.lastSeen = s.now()
		s.mu.Unlock()
		return l.p, nil
	}
	s.mu.Unlock()

	stored, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.pipelines[id]; ok {
		l.lastSeen = s.now()
		return l.p, nil
	}
	p := s.newPipeline(id, stored)
	s.pipelines[id] = &live{p: p, lastSeen: s.now()}
	s.logger.Debug(ctx, "session restored", logger.String("session_id", id), logger.String("state", string(stored.State)))
	return p, nil
}

func (s *Service) newPipeline(id string, stored *model.Session) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithGuard(s.guard),
		pipeline.WithLogger(s.logger),
		pipeline.WithClock(s.now),
		pipeline.WithObserver(s.persist),
		pipeline.WithUploadWait(s.uploadWait),
	}
	if stored != nil {
		opts = append(opts, pipeline.WithSession(stored))
	}
	return pipeline.New(id, s.uploader, s.analyzer, s.pool, opts...)
}

// persist writes a pipeline snapshot, keeping the leaderboard link that only
// the store knows about.
func (s *Service) persist(snap model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if prev, err := s.sessions.Get(ctx, snap.ID); err == nil {
		snap.LeaderboardID = prev.LeaderboardID
	}
	if err := s.sessions.Put(ctx, &snap); err != nil {
		metrics.RecordErrorByComponent("sessionstore", "put")
		s.logger.Error(ctx, "failed to persist session",
			logger.String("session_id", snap.ID),
			logger.Error(err),
		)
	}
}

func (s *Service) janitor() {
	defer s.janitorWG.Done()
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

// evictIdle drops pipelines that have not been touched for idleTimeout and
// are not waiting on an upload or analysis.
func (s *Service) evictIdle() int {
	cutoff := s.now().Add(-s.idleTimeout)
	s.mu.Lock()
	evicted := 0
	for id, l := range s.pipelines {
		if l.lastSeen.After(cutoff) || busy(l.p.Session()) {
			continue
		}
		delete(s.pipelines, id)
		evicted++
	}
	s.mu.Unlock()

	if sw, ok := s.sessions.(interface{ Sweep() int }); ok {
		sw.Sweep()
	}
	if evicted > 0 {
		s.logger.Debug(context.Background(), "evicted idle sessions", logger.Int("count", evicted))
	}
	return evicted
}

func busy(snap model.Session) bool {
	return snap.State == model.SessionAnalyzing ||
		snap.Video.Status == model.UploadPending ||
		snap.Image.Status == model.UploadPending
}

func imageRef(snap model.Session) string {
	if snap.Image.Asset == nil {
		return ""
	}
	return snap.Image.Asset.RemoteRef
}
