package media

import "errors"

var (
	ErrStreamEnded      = errors.New("stream ended")
	ErrRecorderState    = errors.New("recorder in wrong state")
	ErrNoVideoRequested = errors.New("constraints request no video")
)
