package capturecli

import (
	"errors"
	"fmt"
)

var (
	// ErrUnhealthy is returned when the service health probe fails.
	ErrUnhealthy = errors.New("service is not healthy")
	// ErrRecordingFailed is returned when the recorder produced no clip.
	ErrRecordingFailed = errors.New("recording failed")
	// ErrNotStarted is returned when the recorder could not be started.
	ErrNotStarted = errors.New("recording did not start")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service returned %d %s: %s", e.Status, e.Code, e.Message)
}
