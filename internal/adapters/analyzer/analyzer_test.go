package analyzer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/facepace/internal/adapters/analyzer"
	"github.com/okian/facepace/internal/config"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/smartystreets/goconvey/convey"
)

var request = model.AnalysisRequest{VideoRef: "v1", ImageRef: "i1", DeclaredAge: 34}

func stub(status int, body string, seen *model.AnalysisRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

func TestClientAnalyze(t *testing.T) {
	convey.Convey("Given a stub analysis service", t, func() {
		ctx := context.Background()

		convey.Convey("When it returns a full report with string scalars", func() {
			var seen model.AnalysisRequest
			srv := stub(http.StatusOK, `{"pace_of_aging":"0.91","functional_age":"30","hr":62,
				"biological_age_difference":"4 years younger",
				"acne":{"description":"clear","score":"2"}}`, &seen)
			defer srv.Close()
			c, err := analyzer.NewClient(srv.URL)
			convey.So(err, convey.ShouldBeNil)

			report, err := c.Analyze(ctx, request)

			convey.Convey("Then the request body carries refs and age", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(seen, convey.ShouldResemble, request)
			})

			convey.Convey("Then the values are preserved as received", func() {
				convey.So(report.FunctionalAge, convey.ShouldEqual, model.Number("30"))
				convey.So(report.HR, convey.ShouldEqual, model.Number("62"))
				convey.So(report.Acne.Score, convey.ShouldEqual, model.Number("2"))
				convey.So(report.Simulated, convey.ShouldBeFalse)
				convey.So(string(report.Raw), convey.ShouldContainSubstring, "pace_of_aging")
			})

			convey.Convey("Then the presenter receives it unmodified", func() {
				v, err := results.NewPresenter(results.FullProfile()).View(report, "i1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(v.Report.FunctionalAge, convey.ShouldEqual, model.Number("30"))
			})
		})

		convey.Convey("When the report is wrapped in result", func() {
			srv := stub(http.StatusOK, `{"result":{"age":41}}`, nil)
			defer srv.Close()
			c, _ := analyzer.NewClient(srv.URL)
			report, err := c.Analyze(ctx, request)

			convey.Convey("Then the inner report is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.Age, convey.ShouldEqual, model.Number("41"))
			})
		})

		convey.Convey("When the service answers 500", func() {
			srv := stub(http.StatusInternalServerError, `model crashed`, nil)
			defer srv.Close()
			c, _ := analyzer.NewClient(srv.URL)
			report, err := c.Analyze(ctx, request)

			convey.Convey("Then a service error with status and body is returned", func() {
				convey.So(report, convey.ShouldBeNil)
				convey.So(errors.Is(err, model.ErrAnalysisService), convey.ShouldBeTrue)
				var se *model.ServiceError
				convey.So(errors.As(err, &se), convey.ShouldBeTrue)
				convey.So(se.Status, convey.ShouldEqual, http.StatusInternalServerError)
				convey.So(se.Body, convey.ShouldEqual, "model crashed")
			})
		})

		convey.Convey("When a 2xx body has the wrong shape", func() {
			bodies := []string{`not json`, `{"message":"ok"}`, `[1,2]`, `{"age":{"value":3}}`}
			for _, body := range bodies {
				srv := stub(http.StatusOK, body, nil)
				c, _ := analyzer.NewClient(srv.URL)
				_, err := c.Analyze(ctx, request)
				srv.Close()

				convey.So(errors.Is(err, model.ErrAnalysisMalformed), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the service is slower than the timeout", func() {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			defer close(release)
			c, _ := analyzer.NewClient(srv.URL, analyzer.WithTimeout(30*time.Millisecond))
			report, err := c.Analyze(ctx, request)

			convey.Convey("Then a timeout error is returned and no report", func() {
				convey.So(errors.Is(err, model.ErrAnalysisTimeout), convey.ShouldBeTrue)
				convey.So(report, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the request is incomplete", func() {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
			defer srv.Close()
			c, _ := analyzer.NewClient(srv.URL)
			_, e1 := c.Analyze(ctx, model.AnalysisRequest{ImageRef: "i", DeclaredAge: 30})
			_, e2 := c.Analyze(ctx, model.AnalysisRequest{VideoRef: "v", ImageRef: "i", DeclaredAge: 0})

			convey.Convey("Then nothing is sent", func() {
				convey.So(errors.Is(e1, model.ErrMissingAsset), convey.ShouldBeTrue)
				convey.So(errors.Is(e2, model.ErrInvalidAge), convey.ShouldBeTrue)
				convey.So(calls.Load(), convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given no endpoint", t, func() {
		_, err := analyzer.NewClient("")
		convey.So(errors.Is(err, analyzer.ErrNoEndpoint), convey.ShouldBeTrue)
	})
}

func TestSimulated(t *testing.T) {
	convey.Convey("Given the simulated analyzer without latency", t, func() {
		s := analyzer.NewSimulated(analyzer.WithLatencyRange(0, 0))
		ctx := context.Background()

		convey.Convey("When the same request is analyzed twice", func() {
			a, err1 := s.Analyze(ctx, request)
			b, err2 := s.Analyze(ctx, request)

			convey.Convey("Then the reports are identical and flagged", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(a.Simulated, convey.ShouldBeTrue)
				convey.So(a.PaceOfAging, convey.ShouldEqual, b.PaceOfAging)
				convey.So(a.FunctionalAge, convey.ShouldEqual, b.FunctionalAge)
				pace, ok := a.PaceOfAging.Float()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(pace, convey.ShouldBeBetweenOrEqual, 0.6, 1.4)
			})
		})

		convey.Convey("When the context is already canceled", func() {
			slow := analyzer.NewSimulated(analyzer.WithLatencyRange(time.Second, 2*time.Second))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := slow.Analyze(cctx, request)

			convey.Convey("Then it returns the cancellation and no report", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewFromConfig(t *testing.T) {
	convey.Convey("Given analysis modes", t, func() {
		cfg := config.New()

		convey.Convey("Then remote builds a client with the configured timeout", func() {
			a, err := analyzer.NewFromConfig(cfg, nil)
			convey.So(err, convey.ShouldBeNil)
			c, ok := a.(*analyzer.Client)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(c.Timeout(), convey.ShouldEqual, 290*time.Second)
		})

		convey.Convey("Then simulated builds the demo analyzer", func() {
			cfg.AnalysisMode = config.AnalysisSimulated
			a, err := analyzer.NewFromConfig(cfg, nil)
			convey.So(err, convey.ShouldBeNil)
			_, ok := a.(*analyzer.Simulated)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("Then anything else is rejected", func() {
			cfg.AnalysisMode = "fallback"
			_, err := analyzer.NewFromConfig(cfg, nil)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
