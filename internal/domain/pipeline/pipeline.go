// Package pipeline uploads the captured artifacts of one session, joins the
// uploads and requests the analysis once both references exist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/facepace/internal/domain/dedupe"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
	"github.com/okian/facepace/pkg/metrics"
)

const tracerName = "github.com/okian/facepace/internal/domain/pipeline"

// Uploader stores one artifact and resolves its public reference.
type Uploader interface {
	Upload(ctx context.Context, kind model.AssetKind, blob model.Blob) (*model.UploadedAsset, error)
}

// Analyzer performs the remote analysis call.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error)
}

// Dispatcher runs upload jobs in the background. Jobs receive a context that
// is not tied to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind, id string, fn func(ctx context.Context) error) error
}

// slot is the upload state of one artifact kind.
type slot struct {
	status model.UploadStatus
	asset  *model.UploadedAsset
	err    error
	gen    uint64
	done   chan struct{}
}

func newSlot() slot {
	done := make(chan struct{})
	close(done)
	return slot{status: model.UploadNone, done: done}
}

func (s *slot) view() model.AssetSlot {
	v := model.AssetSlot{Status: s.status, Asset: s.asset}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	return v
}

// Pipeline orchestrates one session. It also acts as the capture sink.
type Pipeline struct {
	id         string
	uploader   Uploader
	analyzer   Analyzer
	dispatcher Dispatcher
	guard      dedupe.Deduper
	logger     logger.Logger
	now        func() time.Time
	observer   func(model.Session)
	resume     *model.Session
	uploadWait time.Duration

	mu        sync.Mutex
	state     model.SessionState
	video     slot
	image     slot
	age       int
	report    *model.AnalysisReport
	lastErr   error
	createdAt time.Time
	updatedAt time.Time

	// serializes observer calls so the last one always sees the newest state
	notifyMu sync.Mutex
}

// New creates the pipeline for session id.
func New(id string, uploader Uploader, analyzer Analyzer, dispatcher Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		id:         id,
		uploader:   uploader,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		logger:     logger.NewNop(),
		now:        time.Now,
		state:      model.SessionCapturing,
		video:      newSlot(),
		image:      newSlot(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.guard == nil {
		p.guard = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
	}
	p.logger = p.logger.Named("pipeline")
	p.createdAt = p.now()
	p.updatedAt = p.createdAt
	if p.resume != nil {
		p.restore(p.resume)
		p.resume = nil
	}
	return p
}

// restore rebuilds state from a stored session. Uploads that were pending
// when the record was written are lost and count as failed.
func (p *Pipeline) restore(s *model.Session) {
	p.createdAt = s.CreatedAt
	p.updatedAt = s.UpdatedAt
	p.age = s.DeclaredAge
	if s.Report != nil {
		p.report = s.Report.Clone()
	}
	p.state = s.State
	if p.state == model.SessionAnalyzing {
		p.state = model.SessionFailed
		p.lastErr = errors.New("analysis interrupted")
	} else if s.LastError != "" {
		p.lastErr = errors.New(s.LastError)
	}
	for _, kind := range []model.AssetKind{model.AssetVideo, model.AssetImage} {
		stored := s.Slot(kind)
		sl := p.slot(kind)
		switch stored.Status {
		case model.UploadUploaded:
			if stored.Asset != nil {
				asset := *stored.Asset
				sl.status, sl.asset = model.UploadUploaded, &asset
			}
		case model.UploadPending, model.UploadFailed:
			sl.status = model.UploadFailed
			msg := stored.Error
			if msg == "" {
				msg = "upload interrupted"
			}
			sl.err = errors.New(msg)
		}
	}
}

// ID returns the session id.
func (p *Pipeline) ID() string { return p.id }

func (p *Pipeline) slot(kind model.AssetKind) *slot {
	if kind == model.AssetVideo {
		return &p.video
	}
	return &p.image
}

// StartUpload hands blob to the background uploader. A video that is already
// uploaded or pending is never uploaded again; an image replaces the previous
// one (retake).
func (p *Pipeline) StartUpload(ctx context.Context, kind model.AssetKind, blob model.Blob) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown asset kind %q", model.ErrInvalidTransition, kind)
	}
	if blob.Empty() {
		return fmt.Errorf("%w: empty %s", model.ErrMissingAsset, kind)
	}

	p.mu.Lock()
	switch {
	case p.state == model.SessionAnalyzing:
		p.mu.Unlock()
		return fmt.Errorf("%w: session %s", model.ErrAnalysisInFlight, p.id)
	case p.report != nil:
		p.mu.Unlock()
		return fmt.Errorf("%w: session %s already analyzed", model.ErrInvalidTransition, p.id)
	}
	sl := p.slot(kind)
	if kind == model.AssetVideo && (sl.status == model.UploadPending || sl.status == model.UploadUploaded) {
		p.mu.Unlock()
		p.logger.Debug(ctx, "video already handed off, skipping upload", logger.String("session_id", p.id))
		return nil
	}
	sl.gen++
	gen := sl.gen
	sl.status, sl.asset, sl.err = model.UploadPending, nil, nil
	sl.done = make(chan struct{})
	done := sl.done
	p.touchLocked()
	p.mu.Unlock()
	p.changed()

	jobID := p.id + "/" + string(kind)
	err := p.dispatcher.Dispatch(ctx, "upload_"+string(kind), jobID, func(jobCtx context.Context) error {
		return p.runUpload(jobCtx, kind, blob, gen, done)
	})
	if err != nil {
		p.finishUpload(kind, gen, done, nil, err)
		metrics.RecordUpload(string(kind), "rejected", 0, 0)
		return err
	}
	return nil
}

func (p *Pipeline) runUpload(ctx context.Context, kind model.AssetKind, blob model.Blob, gen uint64, done chan struct{}) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", p.id),
		attribute.String("asset.kind", string(kind)),
		attribute.Int64("asset.size", blob.Size()),
	)

	start := p.now()
	asset, err := p.uploader.Upload(ctx, kind, blob)
	if err == nil && (asset == nil || asset.RemoteRef == "") {
		err = fmt.Errorf("%w: no reference for %s", model.ErrURLResolution, kind)
	}
	latency := float64(p.now().Sub(start).Milliseconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordUpload(string(kind), uploadOutcome(err), blob.Size(), latency)
		p.logger.Error(ctx, "upload failed",
			logger.String("session_id", p.id),
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
	} else {
		metrics.RecordUpload(string(kind), "ok", blob.Size(), latency)
		p.logger.Info(ctx, "upload complete",
			logger.String("session_id", p.id),
			logger.String("kind", string(kind)),
			logger.Int64("bytes", blob.Size()),
		)
	}
	p.finishUpload(kind, gen, done, asset, err)
	return err
}

func uploadOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrURLResolution):
		return "url_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "storage_error"
	}
}

// finishUpload records the result unless a newer upload replaced this one.
// A failure clears only this slot.
func (p *Pipeline) finishUpload(kind model.AssetKind, gen uint64, done chan struct{}, asset *model.UploadedAsset, err error) {
	p.mu.Lock()
	sl := p.slot(kind)
	if sl.gen == gen {
		if err != nil {
			sl.status, sl.asset, sl.err = model.UploadFailed, nil, err
		} else {
			sl.status, sl.asset, sl.err = model.UploadUploaded, asset, nil
		}
		p.touchLocked()
	}
	p.mu.Unlock()
	close(done)
	p.changed()
}

// Submit validates age, waits for both uploads and requests the analysis.
// A session that already has a report returns it without a second request.
func (p *Pipeline) Submit(ctx context.Context, age int) (*model.AnalysisReport, error) {
	if err := model.ValidateAge(age); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.report != nil {
		r := p.report.Clone()
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	if p.guard.SeenAndRecord(ctx, p.id) {
		return nil, fmt.Errorf("%w: session %s", model.ErrAnalysisInFlight, p.id)
	}
	defer p.guard.Unrecord(ctx, p.id)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.submit")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", p.id), attribute.Int("age", age))

	report, err := p.submit(ctx, age)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

func (p *Pipeline) submit(ctx context.Context, age int) (*model.AnalysisReport, error) {
	p.mu.Lock()
	if p.report != nil {
		r := p.report.Clone()
		p.mu.Unlock()
		return r, nil
	}
	// The shared guard can evict a live claim when it fills up.
	if p.state == model.SessionAnalyzing {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", model.ErrAnalysisInFlight, p.id)
	}
	p.age = age
	p.state = model.SessionAnalyzing
	p.lastErr = nil
	p.touchLocked()
	p.mu.Unlock()
	p.changed()

	video, image, err := p.join(ctx)
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	req, err := model.NewAnalysisRequest(video, image, age)
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	metrics.AddAnalysisInFlight(1)
	report, err := p.analyzer.Analyze(ctx, req)
	metrics.AddAnalysisInFlight(-1)
	if err != nil {
		return nil, p.fail(ctx, err)
	}
	if report == nil {
		return nil, p.fail(ctx, fmt.Errorf("%w: empty report", model.ErrAnalysisMalformed))
	}

	p.mu.Lock()
	p.report = report.Clone()
	p.state = model.SessionAnalyzed
	p.touchLocked()
	p.mu.Unlock()
	p.changed()

	p.logger.Info(ctx, "analysis complete",
		logger.String("session_id", p.id),
		logger.Bool("simulated", report.Simulated),
	)
	return report.Clone(), nil
}

// join waits for both uploads, bounded by uploadWait when it is set.
func (p *Pipeline) join(ctx context.Context) (video, image *model.UploadedAsset, err error) {
	var expired <-chan time.Time
	if p.uploadWait > 0 {
		t := time.NewTimer(p.uploadWait)
		defer t.Stop()
		expired = t.C
	}
	if video, err = p.await(ctx, model.AssetVideo, expired); err != nil {
		return nil, nil, err
	}
	if image, err = p.await(ctx, model.AssetImage, expired); err != nil {
		return nil, nil, err
	}
	return video, image, nil
}

// await blocks until the upload of kind resolves and returns its asset.
func (p *Pipeline) await(ctx context.Context, kind model.AssetKind, expired <-chan time.Time) (*model.UploadedAsset, error) {
	p.mu.Lock()
	done := p.slot(kind).done
	p.mu.Unlock()

	select {
	case <-done:
	case <-expired:
		return nil, fmt.Errorf("%w: %s upload still running after %s", model.ErrUploadWait, kind, p.uploadWait)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s upload: %w", kind, ctx.Err())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sl := p.slot(kind)
	switch sl.status {
	case model.UploadUploaded:
		asset := *sl.asset
		return &asset, nil
	case model.UploadFailed:
		return nil, fmt.Errorf("%s upload: %w", kind, sl.err)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrMissingAsset, kind)
	}
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	p.mu.Lock()
	p.state = model.SessionFailed
	p.lastErr = err
	p.touchLocked()
	p.mu.Unlock()
	p.changed()

	p.logger.Warn(ctx, "analysis not completed",
		logger.String("session_id", p.id),
		logger.Error(err),
	)
	return err
}

// Report returns the analysis report, if any.
func (p *Pipeline) Report() (*model.AnalysisReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.report == nil {
		return nil, false
	}
	return p.report.Clone(), true
}

// Session returns a snapshot of the session record.
func (p *Pipeline) Session() model.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := model.Session{
		ID:          p.id,
		State:       p.state,
		Video:       p.video.view(),
		Image:       p.image.view(),
		DeclaredAge: p.age,
		CreatedAt:   p.createdAt,
		UpdatedAt:   p.updatedAt,
	}
	if p.report != nil {
		s.Report = p.report.Clone()
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

func (p *Pipeline) touchLocked() { p.updatedAt = p.now() }

func (p *Pipeline) changed() {
	if p.observer == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.observer(p.Session())
}

// VideoRecorded starts the video upload in the background.
func (p *Pipeline) VideoRecorded(blob model.Blob) {
	if err := p.StartUpload(context.Background(), model.AssetVideo, blob); err != nil {
		p.logger.Error(context.Background(), "video handoff failed", logger.String("session_id", p.id), logger.Error(err))
	}
}

// PhotoConfirmed starts the image upload in the background.
func (p *Pipeline) PhotoConfirmed(blob model.Blob) {
	if err := p.StartUpload(context.Background(), model.AssetImage, blob); err != nil {
		p.logger.Error(context.Background(), "image handoff failed", logger.String("session_id", p.id), logger.Error(err))
	}
}

// AgeSubmitted records the declared age; Submit issues the request.
func (p *Pipeline) AgeSubmitted(age int) {
	p.mu.Lock()
	p.age = age
	p.touchLocked()
	p.mu.Unlock()
	p.changed()
}
