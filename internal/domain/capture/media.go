package capture

import (
	"context"
	"image"

	"github.com/okian/facepace/internal/domain/model"
)

// TrackKind is the media type of a track.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// TrackState reports whether a track still produces media.
type TrackState string

const (
	TrackLive  TrackState = "live"
	TrackEnded TrackState = "ended"
)

// Constraints describe the requested media.
type Constraints struct {
	Video      bool
	Audio      bool
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints asks for the front camera with audio.
func DefaultConstraints() Constraints {
	return Constraints{Video: true, Audio: true, FacingMode: "user"}
}

// Device acquires media streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live capture owned by exactly one controller.
type Stream interface {
	Tracks() []Track
	NewRecorder() (Recorder, error)
	// Frame grabs the current video frame.
	Frame() (image.Image, error)
}

// Track is a single audio or video track. Stop is idempotent.
type Track interface {
	Kind() TrackKind
	State() TrackState
	Stop()
}

// Recorder encodes the stream into a video blob.
type Recorder interface {
	Start() error
	Stop() (model.Blob, error)
}

// StopTracks ends every track of s. A nil stream is a no-op.
func StopTracks(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
