package capturecli

import (
	"time"

	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/domain/capture"
	"github.com/okian/facepace/internal/domain/results"
)

// Config holds configuration for one guided capture run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Age        int           // Declared age submitted after the photo
	Name       string        // Display name to publish under; empty skips publishing
	TopN       int           // Leaderboard entries fetched after publishing
	Timeout    time.Duration // HTTP request timeout for non-analysis calls
	Profile    capture.Profile
	OutputFile string // Optional JSON dump of the run result
}

// Result is what a run produced.
type Result struct {
	SessionID   string              `json:"session_id"`
	View        results.View        `json:"view"`
	Entry       *repository.Ranked  `json:"entry,omitempty"`
	Leaderboard []repository.Ranked `json:"leaderboard,omitempty"`
	VideoBytes  int64               `json:"video_bytes"`
	ImageBytes  int64               `json:"image_bytes"`
	Duration    time.Duration       `json:"duration"`
}

// QuickChoreography compresses the prompt sequence for demos and tests while
// keeping its shape.
func QuickChoreography() capture.Choreography {
	return capture.Choreography{
		FaceGuide: 200 * time.Millisecond,
		OpenEyes:  400 * time.Millisecond,
		Counting:  600 * time.Millisecond,
		Tick:      100 * time.Millisecond,
		CountTo:   capture.DefaultChoreography().CountTo,
	}
}
