package capturecli

import (
	"fmt"
	"os"

	"github.com/okian/facepace/pkg/logger"
)

// SetupLogging initializes the process logger for the CLI.
func SetupLogging(format string, verbose bool) error {
	if err := logger.Init(logger.WithFormat(format), logger.WithOutput(os.Stdout)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the capture tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Facepace Guided Capture
=======================

Runs the guided capture flow against a running facepace service: records the
prompted clip, takes a still photo, submits the declared age, waits for the
analysis and optionally publishes the result to the leaderboard.

Usage:
  go run ./cmd/capture [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -age int
        Declared age in whole years (required)
  -name string
        Publish the result under this display name
  -video string
        Replay this clip instead of the synthetic camera
  -image string
        Still image used for the photo when -video is set
  -top int
        Number of leaderboard entries to fetch after publishing (default 10)
  -timeout duration
        HTTP request timeout (default 30s)
  -quick
        Compress the prompt sequence to about a second
  -output string
        Write the run result as JSON to this file
  -verbose
        Log every prompt change at debug level
  -help
        Show this help message

Examples:
  # Synthetic camera, quick prompts
  go run ./cmd/capture -age 34 -quick

  # Replay a recording and publish the result
  go run ./cmd/capture -age 34 -video clip.webm -image face.jpg -name Ada
`)
}
