package capture_test

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/facepace/internal/adapters/media"
	"github.com/okian/facepace/internal/domain/capture"
)

// TestAutoStopAtCountTo checks that whatever the tick spacing, the recording
// stops exactly once, with the count never passing CountTo.
func TestAutoStopAtCountTo(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("recording stops once at the final count", prop.ForAll(
		func(tickMS int, steps []int) bool {
			ch := capture.DefaultChoreography()
			ch.Tick = time.Duration(tickMS) * time.Millisecond

			clock := &manualClock{}
			sink := &recordingSink{}
			maxCount := 0
			c := capture.NewController(
				media.NewSyntheticDevice(media.WithSize(8, 8)),
				sink,
				capture.WithClock(clock),
				capture.WithProfile(capture.Profile{Mirror: true, JPEGQuality: 80, Constraints: capture.DefaultConstraints(), Choreography: ch}),
				capture.WithObserver(func(s capture.Snapshot) {
					if s.Count > maxCount {
						maxCount = s.Count
					}
				}),
			)
			if c.Begin(context.Background()) != nil || !c.StartRecording() {
				return false
			}

			// Advance in irregular slices until well past the expected stop.
			var elapsed time.Duration
			limit := ch.Total() + ch.Tick
			for i := 0; elapsed < limit; i++ {
				step := time.Duration(steps[i%len(steps)]) * time.Millisecond
				clock.Advance(step)
				elapsed += step
			}

			videos, _, _ := sink.counts()
			snap := c.Snapshot()
			return videos == 1 &&
				maxCount == ch.CountTo &&
				snap.Count == ch.CountTo &&
				snap.Step == capture.StepPhoto
		},
		gen.IntRange(1, 2000),
		gen.SliceOfN(7, gen.IntRange(1, 3000)),
	))

	properties.TestingRun(t)
}

func TestMirror(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	left := color.RGBA{R: 255, A: 255}
	right := color.RGBA{B: 255, A: 255}
	src.SetRGBA(0, 0, left)
	src.SetRGBA(2, 0, right)

	out := capture.Mirror(src)
	if out.RGBAAt(0, 0) != right || out.RGBAAt(2, 0) != left {
		t.Fatalf("mirror did not flip: %v %v", out.RGBAAt(0, 0), out.RGBAAt(2, 0))
	}
}
