package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/facepace/internal/adapters/media"
	"github.com/okian/facepace/internal/capturecli"
	"github.com/okian/facepace/internal/config"
	"github.com/okian/facepace/internal/domain/capture"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		age        = flag.Int("age", 0, "Declared age in whole years")
		name       = flag.String("name", "", "Publish the result under this display name")
		videoPath  = flag.String("video", "", "Replay this clip instead of the synthetic camera")
		imagePath  = flag.String("image", "", "Still image used for the photo when -video is set")
		topN       = flag.Int("top", capturecli.DefaultTopN, "Number of leaderboard entries to fetch after publishing")
		timeout    = flag.Duration("timeout", capturecli.DefaultTimeout, "HTTP request timeout")
		quick      = flag.Bool("quick", false, "Compress the prompt sequence")
		outputFile = flag.String("output", "", "Write the run result as JSON to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		capturecli.ShowHelp()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	// Capture profile knobs come from the same config layers as the server.
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := capturecli.SetupLogging(cfg.LogFormat, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	profile := capture.DefaultProfile()
	profile.Mirror = cfg.CaptureMirror
	profile.JPEGQuality = cfg.CaptureJPEGQuality
	if *quick {
		profile.Choreography = capturecli.QuickChoreography()
	}

	var device capture.Device = media.NewSyntheticDevice()
	if *videoPath != "" {
		device = media.NewFileDevice(*videoPath, *imagePath)
	}

	run := &capturecli.Config{
		BaseURL:    *baseURL,
		Age:        *age,
		Name:       *name,
		TopN:       *topN,
		Timeout:    *timeout,
		Profile:    profile,
		OutputFile: *outputFile,
	}
	if _, err := capturecli.Run(ctx, run, device); err != nil {
		os.Stderr.WriteString("Capture failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
