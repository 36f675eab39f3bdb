package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared across the capture and analysis workflow.
// Callers match them with errors.Is; none of them is retried automatically.
var (
	ErrMediaAccess       = errors.New("media access denied or unavailable")
	ErrStorage           = errors.New("storage upload failed")
	ErrURLResolution     = errors.New("public url resolution failed")
	ErrAnalysisTimeout   = errors.New("analysis request timed out")
	ErrUploadWait        = errors.New("uploads did not finish in time")
	ErrAnalysisService   = errors.New("analysis service error")
	ErrAnalysisMalformed = errors.New("analysis response malformed")

	ErrInvalidAge        = errors.New("invalid age")
	ErrMissingAsset      = errors.New("missing uploaded asset")
	ErrAnalysisInFlight  = errors.New("analysis already in flight")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrBackpressure      = errors.New("upload queue full")
)

// ServiceError carries the upstream status and body of a non-2xx analysis response.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrAnalysisService, e.Status, e.Body)
}

// Unwrap makes errors.Is(err, ErrAnalysisService) hold.
func (e *ServiceError) Unwrap() error { return ErrAnalysisService }
