// Package media provides capture devices that do not need camera hardware:
// a synthetic test-pattern device and a device that replays files from disk.
package media

import (
	"sync/atomic"

	"github.com/okian/facepace/internal/domain/capture"
)

type track struct {
	kind    capture.TrackKind
	stopped atomic.Bool
}

func newTrack(kind capture.TrackKind) *track { return &track{kind: kind} }

func (t *track) Kind() capture.TrackKind { return t.kind }

func (t *track) State() capture.TrackState {
	if t.stopped.Load() {
		return capture.TrackEnded
	}
	return capture.TrackLive
}

func (t *track) Stop() { t.stopped.Store(true) }

func tracksFor(c capture.Constraints) []capture.Track {
	var out []capture.Track
	if c.Video {
		out = append(out, newTrack(capture.TrackVideo))
	}
	if c.Audio {
		out = append(out, newTrack(capture.TrackAudio))
	}
	return out
}

func live(tracks []capture.Track) bool {
	for _, t := range tracks {
		if t.Kind() == capture.TrackVideo && t.State() == capture.TrackLive {
			return true
		}
	}
	return false
}
