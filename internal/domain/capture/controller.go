// Package capture drives the guided capture flow: acquire the camera, record a
// short prompted clip, take a still photo and collect the declared age.
//
// The controller owns the media stream exclusively. Other components only see
// the blobs handed to the Sink.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// Step is the top-level position in the flow.
type Step string

const (
	StepStart     Step = "start"
	StepRecord    Step = "record"
	StepPhoto     Step = "photo"
	StepAgeEntry  Step = "age"
	StepSubmitted Step = "submitted"
)

// RecordingState is the recorder lifecycle inside StepRecord.
type RecordingState string

const (
	RecordingIdle      RecordingState = "idle"
	RecordingCountdown RecordingState = "countdown"
	RecordingActive    RecordingState = "recording"
	RecordingStopped   RecordingState = "stopped"
)

// Phase is the prompt shown while recording.
type Phase string

const (
	PhaseInitial   Phase = "initial"
	PhaseGetReady  Phase = "get_ready"
	PhaseFaceGuide Phase = "face_guide"
	PhaseOpenEyes  Phase = "open_eyes"
	PhaseCounting  Phase = "counting"
	PhaseDone      Phase = "done"
)

// Sink receives the artifacts. Calls are made outside the controller lock and
// must not block; uploads are started in the background.
type Sink interface {
	VideoRecorded(blob model.Blob)
	PhotoConfirmed(blob model.Blob)
	AgeSubmitted(age int)
}

var (
	errNoRecorder     = errors.New("no active recorder")
	errEmptyRecording = errors.New("recorder produced no data")
)

// Snapshot is a consistent read of the controller state.
type Snapshot struct {
	Step        Step
	Recording   RecordingState
	Phase       Phase
	Count       int
	HasStream   bool
	HasVideo    bool
	HasImage    bool
	DeclaredAge int
	Err         error
}

// Controller implements the capture state machine.
type Controller struct {
	device  Device
	sink    Sink
	profile Profile
	clock   Clock
	log     logger.Logger
	observe func(Snapshot)

	mu        sync.Mutex
	sched     *scheduler
	gen       uint64
	closed    bool
	step      Step
	recording RecordingState
	phase     Phase
	count     int
	stream    Stream
	recorder  Recorder
	video     *model.Blob
	image     *model.Blob
	age       int
	err       error
}

// NewController builds a controller in StepStart. The stream is acquired by Begin.
func NewController(device Device, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		device:    device,
		sink:      sink,
		profile:   DefaultProfile(),
		clock:     RealClock(),
		log:       logger.NewNop(),
		step:      StepStart,
		recording: RecordingIdle,
		phase:     PhaseInitial,
		count:     1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sched = newScheduler(c.clock)
	return c
}

// Begin acquires the media stream and moves to StepRecord. On failure the
// stream stays nil and the controller remains in StepStart.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%w: controller closed", model.ErrInvalidTransition)
	}
	if c.step != StepStart {
		step := c.step
		c.mu.Unlock()
		return fmt.Errorf("%w: begin from %s", model.ErrInvalidTransition, step)
	}
	c.mu.Unlock()

	stream, err := c.acquire(ctx)

	c.mu.Lock()
	if err != nil {
		c.err = err
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return err
	}
	if c.closed || c.step != StepStart {
		c.mu.Unlock()
		StopTracks(stream)
		return fmt.Errorf("%w: state changed while acquiring media", model.ErrInvalidTransition)
	}
	c.stream = stream
	c.step = StepRecord
	c.err = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// StartRecording starts the recorder and the prompt sequence. It returns
// false when a recording is already underway or the controller is not in
// StepRecord.
func (c *Controller) StartRecording() bool {
	c.mu.Lock()
	if c.closed || c.step != StepRecord || c.recording != RecordingIdle || c.stream == nil {
		c.mu.Unlock()
		return false
	}
	rec, err := c.stream.NewRecorder()
	if err == nil {
		err = rec.Start()
	}
	if err != nil {
		c.err = fmt.Errorf("%w: recorder: %w", model.ErrMediaAccess, err)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return false
	}

	c.recorder = rec
	c.recording = RecordingCountdown
	c.phase = PhaseGetReady
	c.count = 1
	c.err = nil
	gen := c.gen
	ch := c.profile.Choreography

	if ch.GetReady > 0 {
		c.phase = PhaseInitial
		c.sched.after(ch.GetReady, c.guard(gen, func() { c.phase = PhaseGetReady }))
	}
	c.sched.after(ch.FaceGuide, c.guard(gen, func() { c.phase = PhaseFaceGuide }))
	c.sched.after(ch.OpenEyes, c.guard(gen, func() { c.phase = PhaseOpenEyes }))
	c.sched.after(ch.Counting, c.guard(gen, func() {
		c.phase = PhaseCounting
		c.recording = RecordingActive
		c.count = 1
		c.sched.after(ch.Tick, func() { c.tick(gen) })
	}))
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return true
}

// guard wraps a state change so it only applies while gen is current.
func (c *Controller) guard(gen uint64, f func()) func() {
	return func() {
		c.mu.Lock()
		if gen != c.gen || c.closed {
			c.mu.Unlock()
			return
		}
		f()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
	}
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.phase != PhaseCounting {
		c.mu.Unlock()
		return
	}
	if c.count < c.profile.Choreography.CountTo {
		c.count++
		snap := c.snapshotLocked()
		c.sched.after(c.profile.Choreography.Tick, func() { c.tick(gen) })
		c.mu.Unlock()
		c.notify(snap)
		return
	}

	rec := c.recorder
	c.recorder = nil
	c.recording = RecordingStopped
	c.phase = PhaseDone
	c.mu.Unlock()

	var blob model.Blob
	err := errNoRecorder
	if rec != nil {
		blob, err = rec.Stop()
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	if err != nil || blob.Empty() {
		if err == nil {
			err = errEmptyRecording
		}
		c.err = fmt.Errorf("%w: %w", model.ErrMediaAccess, err)
		c.recording = RecordingIdle
		c.phase = PhaseInitial
		c.count = 1
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.log.Warn(context.Background(), "recording failed", logger.Error(err))
		c.notify(snap)
		return
	}
	c.video = &blob
	c.step = StepPhoto
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Info(context.Background(), "recording finished", logger.Int64("size_bytes", blob.Size()))
	c.sink.VideoRecorded(blob)
	c.notify(snap)
}

// CapturePhoto grabs one frame, optionally mirrors it and encodes it as JPEG.
// A previous photo is replaced.
func (c *Controller) CapturePhoto() (model.Blob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepPhoto || c.closed {
		return model.Blob{}, fmt.Errorf("%w: capture photo from %s", model.ErrInvalidTransition, c.step)
	}
	if c.stream == nil {
		return model.Blob{}, fmt.Errorf("%w: no active stream", model.ErrMediaAccess)
	}
	frame, err := c.stream.Frame()
	if err != nil {
		return model.Blob{}, fmt.Errorf("%w: frame: %w", model.ErrMediaAccess, err)
	}
	blob, err := EncodeJPEG(frame, c.profile.Mirror, c.profile.JPEGQuality)
	if err != nil {
		return model.Blob{}, err
	}
	c.image = &blob
	return blob, nil
}

// Retake discards the photo and restarts the camera. The recorded video is kept.
func (c *Controller) Retake(ctx context.Context) error {
	c.mu.Lock()
	if c.step != StepPhoto || c.closed {
		step := c.step
		c.mu.Unlock()
		return fmt.Errorf("%w: retake from %s", model.ErrInvalidTransition, step)
	}
	c.image = nil
	old := c.stream
	c.stream = nil
	c.mu.Unlock()

	StopTracks(old)
	stream, err := c.acquire(ctx)

	c.mu.Lock()
	if err != nil {
		c.err = err
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return err
	}
	if c.closed || c.step != StepPhoto {
		c.mu.Unlock()
		StopTracks(stream)
		return fmt.Errorf("%w: state changed while acquiring media", model.ErrInvalidTransition)
	}
	c.stream = stream
	c.err = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// ConfirmPhoto hands the photo to the sink and moves to age entry.
func (c *Controller) ConfirmPhoto() error {
	c.mu.Lock()
	if c.step != StepPhoto || c.closed {
		step := c.step
		c.mu.Unlock()
		return fmt.Errorf("%w: confirm photo from %s", model.ErrInvalidTransition, step)
	}
	if c.image == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no photo captured", model.ErrMissingAsset)
	}
	blob := *c.image
	c.step = StepAgeEntry
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.sink.PhotoConfirmed(blob)
	c.notify(snap)
	return nil
}

// SubmitAge validates the declared age and hands it to the sink.
func (c *Controller) SubmitAge(age int) error {
	if err := model.ValidateAge(age); err != nil {
		return err
	}
	c.mu.Lock()
	if c.step != StepAgeEntry || c.closed {
		step := c.step
		c.mu.Unlock()
		return fmt.Errorf("%w: submit age from %s", model.ErrInvalidTransition, step)
	}
	c.age = age
	c.step = StepSubmitted
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.sink.AgeSubmitted(age)
	c.notify(snap)
	return nil
}

// Restart tears the session down and returns to StepStart.
func (c *Controller) Restart() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	stream, rec := c.resetLocked()
	c.step = StepStart
	snap := c.snapshotLocked()
	c.mu.Unlock()

	release(stream, rec)
	c.notify(snap)
}

// Close cancels pending transitions and releases the media stream. It is
// idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stream, rec := c.resetLocked()
	c.mu.Unlock()

	release(stream, rec)
	return nil
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// resetLocked invalidates pending callbacks and detaches media. Caller holds c.mu.
func (c *Controller) resetLocked() (Stream, Recorder) {
	c.gen++
	c.sched.cancelAll()
	stream, rec := c.stream, c.recorder
	c.stream, c.recorder = nil, nil
	c.recording = RecordingIdle
	c.phase = PhaseInitial
	c.count = 1
	c.video, c.image = nil, nil
	c.age = 0
	c.err = nil
	return stream, rec
}

func release(stream Stream, rec Recorder) {
	if rec != nil {
		_, _ = rec.Stop()
	}
	StopTracks(stream)
}

func (c *Controller) acquire(ctx context.Context) (Stream, error) {
	stream, err := c.device.Open(ctx, c.profile.Constraints)
	if err != nil {
		c.log.Warn(ctx, "media acquisition failed", logger.Error(err))
		return nil, fmt.Errorf("%w: %w", model.ErrMediaAccess, err)
	}
	if stream == nil {
		return nil, fmt.Errorf("%w: device returned no stream", model.ErrMediaAccess)
	}
	return stream, nil
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Step:        c.step,
		Recording:   c.recording,
		Phase:       c.phase,
		Count:       c.count,
		HasStream:   c.stream != nil,
		HasVideo:    c.video != nil,
		HasImage:    c.image != nil,
		DeclaredAge: c.age,
		Err:         c.err,
	}
}

func (c *Controller) notify(s Snapshot) {
	if c.observe != nil {
		c.observe(s)
	}
}
