package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/okian/facepace/internal/domain/capture"
	"github.com/okian/facepace/internal/domain/model"
)

const (
	defaultWidth  = 640
	defaultHeight = 480

	// ContentTypeWebM is the content type of recorded clips.
	ContentTypeWebM = "video/webm"
)

// SyntheticDevice produces a moving colour-bar pattern. Recordings are a
// small placeholder payload tagged video/webm.
type SyntheticDevice struct {
	width, height int
	now           func() time.Time

	mu     sync.Mutex
	opened int
}

// SyntheticOption configures a SyntheticDevice.
type SyntheticOption func(*SyntheticDevice)

// WithSize sets the frame size.
func WithSize(w, h int) SyntheticOption {
	return func(d *SyntheticDevice) {
		if w > 0 && h > 0 {
			d.width, d.height = w, h
		}
	}
}

// WithNow overrides the time source used to animate frames.
func WithNow(now func() time.Time) SyntheticOption {
	return func(d *SyntheticDevice) { d.now = now }
}

// NewSyntheticDevice builds a synthetic device.
func NewSyntheticDevice(opts ...SyntheticOption) *SyntheticDevice {
	d := &SyntheticDevice{width: defaultWidth, height: defaultHeight, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open implements capture.Device.
func (d *SyntheticDevice) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Video {
		return nil, ErrNoVideoRequested
	}
	w, h := d.width, d.height
	if c.Width > 0 && c.Height > 0 {
		w, h = c.Width, c.Height
	}
	d.mu.Lock()
	d.opened++
	d.mu.Unlock()
	return &syntheticStream{w: w, h: h, now: d.now, tracks: tracksFor(c)}, nil
}

// Opened returns how many streams have been acquired.
func (d *SyntheticDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

type syntheticStream struct {
	w, h   int
	now    func() time.Time
	tracks []capture.Track
}

func (s *syntheticStream) Tracks() []capture.Track { return s.tracks }

func (s *syntheticStream) NewRecorder() (capture.Recorder, error) {
	if !live(s.tracks) {
		return nil, ErrStreamEnded
	}
	return &syntheticRecorder{stream: s}, nil
}

func (s *syntheticStream) Frame() (image.Image, error) {
	if !live(s.tracks) {
		return nil, ErrStreamEnded
	}
	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	shift := int(s.now().UnixMilli()/100) % s.w
	bars := []color.RGBA{
		{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
		{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255},
	}
	barW := s.w / len(bars)
	if barW == 0 {
		barW = 1
	}
	for x := 0; x < s.w; x++ {
		c := bars[((x+shift)/barW)%len(bars)]
		for y := 0; y < s.h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

type syntheticRecorder struct {
	stream  *syntheticStream
	mu      sync.Mutex
	started time.Time
	running bool
}

func (r *syntheticRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRecorderState
	}
	r.running = true
	r.started = r.stream.now()
	return nil
}

// Stop returns a header carrying the frame size and the recorded span.
func (r *syntheticRecorder) Stop() (model.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return model.Blob{}, ErrRecorderState
	}
	r.running = false
	span := r.stream.now().Sub(r.started)

	buf := make([]byte, 0, 32)
	buf = append(buf, "FPSYNTH1"...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(r.stream.w))
	buf = binary.BigEndian.AppendUint32(buf, uint32(r.stream.h))
	buf = binary.BigEndian.AppendUint64(buf, uint64(span.Milliseconds()))
	buf = append(buf, fmt.Sprintf("started=%d", r.started.UnixMilli())...)
	return model.Blob{Data: buf, ContentType: ContentTypeWebM}, nil
}
