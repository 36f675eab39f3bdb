package capturecli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/okian/facepace/internal/domain/capture"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// Run executes one guided capture against the service: record the prompted
// clip, take the photo, submit the age, wait for the analysis and optionally
// publish the result.
func Run(ctx context.Context, cfg *Config, device capture.Device) (*Result, error) {
	if err := model.ValidateAge(cfg.Age); err != nil {
		return nil, err
	}
	start := time.Now()
	log := logger.Get().Named("capture-cli")
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting guided capture",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("age", cfg.Age),
		logger.Bool("publish", cfg.Name != ""),
		logger.Duration("recording", cfg.Profile.Choreography.Total()))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Open a session
	id, err := client.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log.Info(ctx, "session created", logger.String("session_id", id))

	// Step 3: Drive the capture controller
	sink := newUploadSink(ctx, client, id, log)
	changed := make(chan struct{}, 1)
	ctrl := capture.NewController(device, sink,
		capture.WithProfile(cfg.Profile),
		capture.WithLogger(log),
		capture.WithObserver(func(s capture.Snapshot) {
			log.Debug(ctx, "prompt", logger.String("phase", string(s.Phase)), logger.Int("count", s.Count))
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	)
	defer func() { _ = ctrl.Close() }()

	if err := capturePhotoAndAge(ctx, ctrl, changed, cfg.Age); err != nil {
		return nil, err
	}

	// Step 4: Wait for both uploads
	if err := sink.Wait(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	// Step 5: Analyze
	log.Info(ctx, "analysis requested")
	view, err := client.Analyze(ctx, id, cfg.Age)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	res := &Result{
		SessionID:  id,
		View:       view,
		VideoBytes: sink.bytes(model.AssetVideo),
		ImageBytes: sink.bytes(model.AssetImage),
	}

	// Step 6: Publish and read the board back
	if cfg.Name != "" {
		entry, err := client.Publish(ctx, id, cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		res.Entry = &entry
		top := cfg.TopN
		if top <= 0 {
			top = DefaultTopN
		}
		if res.Leaderboard, err = client.Leaderboard(ctx, top); err != nil {
			log.Warn(ctx, "leaderboard retrieval failed", logger.Error(err))
		}
	}

	res.Duration = time.Since(start)
	if cfg.OutputFile != "" {
		if err := saveResult(cfg.OutputFile, res); err != nil {
			log.Warn(ctx, "failed to save result", logger.Error(err))
		} else {
			log.Info(ctx, "result saved", logger.String("filename", cfg.OutputFile))
		}
	}

	displayResult(ctx, log, res)
	return res, nil
}

func capturePhotoAndAge(ctx context.Context, ctrl *capture.Controller, changed <-chan struct{}, age int) error {
	if err := ctrl.Begin(ctx); err != nil {
		return fmt.Errorf("acquire media: %w", err)
	}
	if !ctrl.StartRecording() {
		if err := ctrl.Snapshot().Err; err != nil {
			return fmt.Errorf("%w: %w", ErrNotStarted, err)
		}
		return ErrNotStarted
	}

	for {
		s := ctrl.Snapshot()
		if s.Step == capture.StepPhoto {
			break
		}
		if s.Err != nil && s.Recording == capture.RecordingIdle {
			return fmt.Errorf("%w: %w", ErrRecordingFailed, s.Err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}

	if _, err := ctrl.CapturePhoto(); err != nil {
		return fmt.Errorf("capture photo: %w", err)
	}
	if err := ctrl.ConfirmPhoto(); err != nil {
		return fmt.Errorf("confirm photo: %w", err)
	}
	if err := ctrl.SubmitAge(age); err != nil {
		return fmt.Errorf("submit age: %w", err)
	}
	return nil
}

func saveResult(filename string, res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// displayResult prints the headline numbers of the run.
func displayResult(ctx context.Context, log logger.Logger, res *Result) {
	fields := []logger.Field{
		logger.String("sessionID", res.SessionID),
		logger.Bool("simulated", res.View.Simulated),
		logger.Int64("videoBytes", res.VideoBytes),
		logger.Int64("imageBytes", res.ImageBytes),
		logger.String("duration", res.Duration.String()),
	}
	if r := res.View.Report; r != nil {
		fields = append(fields,
			logger.String("paceOfAging", r.PaceOfAging.String()),
			logger.String("functionalAge", r.FunctionalAge.String()),
			logger.String("difference", r.BiologicalAgeDifference))
	}
	if res.Entry != nil {
		fields = append(fields,
			logger.Int("rank", res.Entry.Rank),
			logger.String("metric", string(res.Entry.MetricKind)),
			logger.Int("leaderboardEntries", len(res.Leaderboard)))
	}
	log.Info(ctx, "capture completed", fields...)
}
