package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/facepace/internal/domain/dedupe"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/pipeline"
	. "github.com/smartystreets/goconvey/convey"
)

func waitState(p *pipeline.Pipeline, want model.SessionState) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Session().State == want {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func TestSubmit(t *testing.T) {
	Convey("Given a pipeline with working collaborators", t, func() {
		up := newFakeUploader()
		an := &fakeAnalyzer{report: &model.AnalysisReport{FunctionalAge: "30", PaceOfAging: "0.92"}}
		disp := &goDispatcher{}
		var mu sync.Mutex
		var observed []model.Session
		p := pipeline.New("s1", up, an, disp, pipeline.WithObserver(func(s model.Session) {
			mu.Lock()
			observed = append(observed, s)
			mu.Unlock()
		}))
		ctx := context.Background()

		Convey("When both artifacts are uploaded and the age is submitted", func() {
			So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
			So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)
			report, err := p.Submit(ctx, 34)

			Convey("Then the request carries both references and the age", func() {
				So(err, ShouldBeNil)
				So(an.last, ShouldResemble, model.AnalysisRequest{VideoRef: "v1", ImageRef: "i1", DeclaredAge: 34})
			})

			Convey("Then the report comes back unmodified", func() {
				So(report.FunctionalAge, ShouldEqual, model.Number("30"))
				pace, ok := report.PaceOfAging.Float()
				So(ok, ShouldBeTrue)
				So(pace, ShouldAlmostEqual, 0.92)
			})

			Convey("Then the session is analyzed and observed as such", func() {
				s := p.Session()
				So(s.State, ShouldEqual, model.SessionAnalyzed)
				So(s.DeclaredAge, ShouldEqual, 34)
				So(s.Video.Status, ShouldEqual, model.UploadUploaded)
				So(s.Image.Asset.RemoteRef, ShouldEqual, "i1")

				mu.Lock()
				last := observed[len(observed)-1]
				mu.Unlock()
				So(last.State, ShouldEqual, model.SessionAnalyzed)
			})

			Convey("Then a second submit returns the same report without a new request", func() {
				again, err := p.Submit(ctx, 34)
				So(err, ShouldBeNil)
				So(again.FunctionalAge, ShouldEqual, report.FunctionalAge)
				So(an.count(), ShouldEqual, 1)
			})

			Convey("Then further uploads are rejected", func() {
				err := p.StartUpload(ctx, model.AssetImage, imageBlob)
				So(errors.Is(err, model.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When the age is out of range", func() {
			So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
			So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)
			_, err := p.Submit(ctx, 120)

			Convey("Then it is rejected without an analysis call", func() {
				So(errors.Is(err, model.ErrInvalidAge), ShouldBeTrue)
				So(an.count(), ShouldEqual, 0)
			})
		})

		Convey("When the image was never uploaded", func() {
			So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
			_, err := p.Submit(ctx, 40)

			Convey("Then the submit fails with a missing asset", func() {
				So(errors.Is(err, model.ErrMissingAsset), ShouldBeTrue)
				So(an.count(), ShouldEqual, 0)
				So(p.Session().State, ShouldEqual, model.SessionFailed)
			})
		})

		Convey("When the analysis times out", func() {
			an.err = model.ErrAnalysisTimeout
			So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
			So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)
			report, err := p.Submit(ctx, 40)

			Convey("Then the timeout surfaces and no report is stored", func() {
				So(errors.Is(err, model.ErrAnalysisTimeout), ShouldBeTrue)
				So(report, ShouldBeNil)
				_, ok := p.Report()
				So(ok, ShouldBeFalse)
				So(p.Session().LastError, ShouldContainSubstring, "timed out")
			})

			Convey("Then a retry after recovery succeeds without re-uploading", func() {
				an.err = nil
				_, err := p.Submit(ctx, 40)
				So(err, ShouldBeNil)
				So(up.count(model.AssetVideo), ShouldEqual, 1)
				So(up.count(model.AssetImage), ShouldEqual, 1)
			})
		})
	})
}

func TestUploads(t *testing.T) {
	Convey("Given a pipeline", t, func() {
		up := newFakeUploader()
		an := &fakeAnalyzer{report: &model.AnalysisReport{Age: "41"}}
		disp := &goDispatcher{}
		p := pipeline.New("s2", up, an, disp)
		ctx := context.Background()

		Convey("When the video is handed over twice and the image is retaken", func() {
			p.VideoRecorded(videoBlob)
			p.VideoRecorded(videoBlob)
			p.PhotoConfirmed(imageBlob)
			disp.wg.Wait()
			p.PhotoConfirmed(model.Blob{Data: []byte("second"), ContentType: "image/jpeg"})
			disp.wg.Wait()

			Convey("Then the video is uploaded once and the image twice", func() {
				So(up.count(model.AssetVideo), ShouldEqual, 1)
				So(up.count(model.AssetImage), ShouldEqual, 2)
				So(p.Session().Image.Asset.Path, ShouldEqual, "image-2")
			})
		})

		Convey("When the video upload fails", func() {
			up.fail(model.AssetVideo, model.ErrStorage)
			So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
			So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)
			_, err := p.Submit(ctx, 30)

			Convey("Then only the video slot is cleared", func() {
				So(errors.Is(err, model.ErrStorage), ShouldBeTrue)
				So(an.count(), ShouldEqual, 0)
				s := p.Session()
				So(s.Video.Status, ShouldEqual, model.UploadFailed)
				So(s.Video.Asset, ShouldBeNil)
				So(s.Image.Status, ShouldEqual, model.UploadUploaded)
			})

			Convey("Then retrying only the video completes the flow", func() {
				up.fail(model.AssetVideo, nil)
				So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
				_, err := p.Submit(ctx, 30)
				So(err, ShouldBeNil)
				So(up.count(model.AssetImage), ShouldEqual, 1)
			})
		})

		Convey("When the upload queue is full", func() {
			disp.reject = true
			err := p.StartUpload(ctx, model.AssetVideo, videoBlob)

			Convey("Then backpressure is reported and the slot fails", func() {
				So(errors.Is(err, model.ErrBackpressure), ShouldBeTrue)
				So(p.Session().Video.Status, ShouldEqual, model.UploadFailed)
			})
		})

		Convey("When an empty blob is handed over", func() {
			err := p.StartUpload(ctx, model.AssetImage, model.Blob{})

			Convey("Then nothing is uploaded", func() {
				So(errors.Is(err, model.ErrMissingAsset), ShouldBeTrue)
				So(p.Session().Image.Status, ShouldEqual, model.UploadNone)
			})
		})
	})
}

func TestInFlight(t *testing.T) {
	Convey("Given uploads that have not finished", t, func() {
		up := newFakeUploader()
		up.gate = make(chan struct{})
		an := &fakeAnalyzer{report: &model.AnalysisReport{Age: "50"}}
		disp := &goDispatcher{}
		p := pipeline.New("s3", up, an, disp)
		ctx := context.Background()
		So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
		So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)

		Convey("When the caller gives up while waiting", func() {
			waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err := p.Submit(waitCtx, 50)
			close(up.gate)
			disp.wg.Wait()

			Convey("Then no analysis was requested", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(an.count(), ShouldEqual, 0)
			})
		})

		Convey("When a second submit arrives during the first", func() {
			type result struct {
				report *model.AnalysisReport
				err    error
			}
			first := make(chan result, 1)
			go func() {
				r, err := p.Submit(ctx, 50)
				first <- result{r, err}
			}()
			So(waitState(p, model.SessionAnalyzing), ShouldBeTrue)

			_, err := p.Submit(ctx, 50)
			uploadErr := p.StartUpload(ctx, model.AssetImage, imageBlob)
			close(up.gate)
			res := <-first

			Convey("Then the second is turned away and the first completes", func() {
				So(errors.Is(err, model.ErrAnalysisInFlight), ShouldBeTrue)
				So(errors.Is(uploadErr, model.ErrAnalysisInFlight), ShouldBeTrue)
				So(res.err, ShouldBeNil)
				So(res.report.Age, ShouldEqual, model.Number("50"))
				So(an.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestUploadWait(t *testing.T) {
	Convey("Given a pipeline that waits a bounded time for its uploads", t, func() {
		up := newFakeUploader()
		up.gate = make(chan struct{})
		an := &fakeAnalyzer{report: &model.AnalysisReport{Age: "44"}}
		disp := &goDispatcher{}
		p := pipeline.New("sw", up, an, disp, pipeline.WithUploadWait(20*time.Millisecond))
		ctx := context.Background()
		So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
		So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)

		Convey("When the uploads outlast the bound", func() {
			start := time.Now()
			_, err := p.Submit(ctx, 44)
			elapsed := time.Since(start)
			close(up.gate)
			disp.wg.Wait()

			Convey("Then the submit gives up without an analysis call", func() {
				So(errors.Is(err, model.ErrUploadWait), ShouldBeTrue)
				So(elapsed, ShouldBeLessThan, time.Second)
				So(an.count(), ShouldEqual, 0)
				So(p.Session().State, ShouldEqual, model.SessionFailed)
			})

			Convey("Then a retry once the uploads land succeeds", func() {
				_, err := p.Submit(ctx, 44)
				So(err, ShouldBeNil)
				So(an.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestInFlightSharedGuard(t *testing.T) {
	Convey("Given two pipelines sharing a guard that holds one claim", t, func() {
		up := newFakeUploader()
		up.gate = make(chan struct{})
		guard := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
		anA := &fakeAnalyzer{report: &model.AnalysisReport{Age: "31"}}
		anB := &fakeAnalyzer{report: &model.AnalysisReport{Age: "32"}}
		disp := &goDispatcher{}
		a := pipeline.New("sa", up, anA, disp, pipeline.WithGuard(guard))
		b := pipeline.New("sb", up, anB, disp, pipeline.WithGuard(guard))
		ctx := context.Background()
		for _, p := range []*pipeline.Pipeline{a, b} {
			So(p.StartUpload(ctx, model.AssetVideo, videoBlob), ShouldBeNil)
			So(p.StartUpload(ctx, model.AssetImage, imageBlob), ShouldBeNil)
		}

		Convey("When the second session evicts the first claim and the first is resubmitted", func() {
			errs := make(chan error, 2)
			go func() {
				_, err := a.Submit(ctx, 31)
				errs <- err
			}()
			So(waitState(a, model.SessionAnalyzing), ShouldBeTrue)
			go func() {
				_, err := b.Submit(ctx, 32)
				errs <- err
			}()
			So(waitState(b, model.SessionAnalyzing), ShouldBeTrue)

			_, again := a.Submit(ctx, 31)
			close(up.gate)
			first, second := <-errs, <-errs

			Convey("Then the resubmit is turned away and each session is analyzed once", func() {
				So(errors.Is(again, model.ErrAnalysisInFlight), ShouldBeTrue)
				So(first, ShouldBeNil)
				So(second, ShouldBeNil)
				So(anA.count(), ShouldEqual, 1)
				So(anB.count(), ShouldEqual, 1)
				So(a.Session().State, ShouldEqual, model.SessionAnalyzed)
			})
		})
	})
}

func TestResume(t *testing.T) {
	Convey("Given a stored session with one uploaded and one pending asset", t, func() {
		stored := model.NewSession("s4", time.Unix(100, 0))
		stored.Video = model.AssetSlot{Status: model.UploadUploaded, Asset: &model.UploadedAsset{Kind: model.AssetVideo, RemoteRef: "v1"}}
		stored.Image = model.AssetSlot{Status: model.UploadPending}
		stored.State = model.SessionAnalyzing

		up := newFakeUploader()
		an := &fakeAnalyzer{report: &model.AnalysisReport{Age: "22"}}
		disp := &goDispatcher{}
		p := pipeline.New("s4", up, an, disp, pipeline.WithSession(stored))

		Convey("Then the pending upload and the interrupted analysis count as failed", func() {
			s := p.Session()
			So(s.CreatedAt, ShouldEqual, time.Unix(100, 0))
			So(s.State, ShouldEqual, model.SessionFailed)
			So(s.Video.Status, ShouldEqual, model.UploadUploaded)
			So(s.Image.Status, ShouldEqual, model.UploadFailed)
		})

		Convey("When the image is uploaded again", func() {
			So(p.StartUpload(context.Background(), model.AssetImage, imageBlob), ShouldBeNil)
			_, err := p.Submit(context.Background(), 22)

			Convey("Then the stored video reference is reused", func() {
				So(err, ShouldBeNil)
				So(up.count(model.AssetVideo), ShouldEqual, 0)
				So(an.last.VideoRef, ShouldEqual, "v1")
			})
		})
	})
}
