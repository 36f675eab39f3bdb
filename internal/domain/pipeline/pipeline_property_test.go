package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/pipeline"
)

func TestOutOfRangeAgeNeverReachesCollaborators(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("invalid ages are rejected before any call", prop.ForAll(
		func(age int) bool {
			up := newFakeUploader()
			an := &fakeAnalyzer{report: &model.AnalysisReport{Age: "1"}}
			p := pipeline.New("p", up, an, &goDispatcher{})

			_, err := p.Submit(context.Background(), age)
			return errors.Is(err, model.ErrInvalidAge) &&
				an.count() == 0 &&
				up.count(model.AssetVideo) == 0 &&
				up.count(model.AssetImage) == 0 &&
				p.Session().State == model.SessionCapturing
		},
		gen.OneGenOf(gen.IntRange(-1000, 0), gen.IntRange(model.MaxAge+1, 1000)),
	))

	properties.TestingRun(t)
}

func TestNoAnalysisWithoutBothUploads(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("a failed or missing upload blocks the analysis", prop.ForAll(
		func(age int, failVideo, skipImage bool) bool {
			up := newFakeUploader()
			if failVideo {
				up.fail(model.AssetVideo, model.ErrStorage)
			}
			an := &fakeAnalyzer{report: &model.AnalysisReport{Age: "1"}}
			disp := &goDispatcher{}
			p := pipeline.New("p", up, an, disp)
			ctx := context.Background()

			if p.StartUpload(ctx, model.AssetVideo, videoBlob) != nil {
				return false
			}
			if !skipImage && p.StartUpload(ctx, model.AssetImage, imageBlob) != nil {
				return false
			}
			_, err := p.Submit(ctx, age)
			disp.wg.Wait()

			if failVideo || skipImage {
				return err != nil && an.count() == 0
			}
			return err == nil && an.count() == 1
		},
		gen.IntRange(model.MinAge, model.MaxAge),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
