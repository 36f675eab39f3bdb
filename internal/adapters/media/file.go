package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // decode jpeg stills
	_ "image/png"  // decode png stills
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/okian/facepace/internal/domain/capture"
	"github.com/okian/facepace/internal/domain/model"
)

// FileDevice replays a pre-recorded clip and a still image from disk.
type FileDevice struct {
	videoPath string
	imagePath string
}

// NewFileDevice builds a device from a clip and a still image path.
func NewFileDevice(videoPath, imagePath string) *FileDevice {
	return &FileDevice{videoPath: videoPath, imagePath: imagePath}
}

// Open implements capture.Device. Both files are read eagerly so a missing
// file surfaces as an acquisition failure.
func (d *FileDevice) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Video {
		return nil, ErrNoVideoRequested
	}
	video, err := os.ReadFile(d.videoPath)
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	raw, err := os.ReadFile(d.imagePath)
	if err != nil {
		return nil, fmt.Errorf("read still: %w", err)
	}
	still, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode still: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(d.videoPath))
	if ct == "" {
		ct = ContentTypeWebM
	}
	return &fileStream{
		video:  model.Blob{Data: video, ContentType: ct},
		still:  still,
		tracks: tracksFor(c),
	}, nil
}

type fileStream struct {
	video  model.Blob
	still  image.Image
	tracks []capture.Track
}

func (s *fileStream) Tracks() []capture.Track { return s.tracks }

func (s *fileStream) Frame() (image.Image, error) {
	if !live(s.tracks) {
		return nil, ErrStreamEnded
	}
	return s.still, nil
}

func (s *fileStream) NewRecorder() (capture.Recorder, error) {
	if !live(s.tracks) {
		return nil, ErrStreamEnded
	}
	return &fileRecorder{stream: s}, nil
}

type fileRecorder struct {
	stream  *fileStream
	mu      sync.Mutex
	running bool
}

func (r *fileRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRecorderState
	}
	r.running = true
	return nil
}

func (r *fileRecorder) Stop() (model.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return model.Blob{}, ErrRecorderState
	}
	r.running = false
	data := append([]byte(nil), r.stream.video.Data...)
	return model.Blob{Data: data, ContentType: r.stream.video.ContentType}, nil
}
