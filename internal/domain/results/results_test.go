package results_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/smartystreets/goconvey/convey"
)

func fullReport() *model.AnalysisReport {
	return &model.AnalysisReport{
		PaceOfAging:   "0.85",
		FunctionalAge: "30",
		HR:            "64",
		SDNN:          "48.2",
		Acne:          &model.SubScore{Description: "clear", Score: "2"},
		EyeBags:       &model.SubScore{Description: "mild", Score: "4"},
		Raw:           []byte(`{"pace_of_aging":"0.85"}`),
	}
}

func TestView(t *testing.T) {
	convey.Convey("Given a full report", t, func() {
		report := fullReport()

		convey.Convey("When viewed with every section enabled", func() {
			v, err := results.NewPresenter(results.FullProfile()).View(report, "https://cdn/photo.jpg")

			convey.Convey("Then the values pass through unmodified", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(v.Report.FunctionalAge, convey.ShouldEqual, model.Number("30"))
				convey.So(v.Report.HR, convey.ShouldEqual, model.Number("64"))
				convey.So(v.Report.Acne.Description, convey.ShouldEqual, "clear")
				convey.So(v.ImageRef, convey.ShouldEqual, "https://cdn/photo.jpg")
			})
		})

		convey.Convey("When viewed without heart rate and sub-scores", func() {
			v, err := results.NewPresenter(results.DisplayProfile{}).View(report, "")

			convey.Convey("Then those sections are dropped from the copy only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(v.Report.HR, convey.ShouldEqual, model.Number(""))
				convey.So(v.Report.Acne, convey.ShouldBeNil)
				convey.So(v.Report.PaceOfAging, convey.ShouldEqual, model.Number("0.85"))
				convey.So(report.HR, convey.ShouldEqual, model.Number("64"))
				convey.So(report.Acne, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the view is mutated", func() {
			v, _ := results.NewPresenter(results.FullProfile()).View(report, "")
			v.Report.Acne.Score = "9"

			convey.Convey("Then the original report is untouched", func() {
				convey.So(report.Acne.Score, convey.ShouldEqual, model.Number("2"))
			})
		})

		convey.Convey("When there is no report", func() {
			_, err := results.NewPresenter(results.FullProfile()).View(nil, "")

			convey.Convey("Then it fails", func() {
				convey.So(errors.Is(err, results.ErrNoReport), convey.ShouldBeTrue)
			})
		})
	})
}

func TestCandidate(t *testing.T) {
	convey.Convey("Given a presenter with a fixed clock and ids", t, func() {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		p := results.NewPresenter(results.FullProfile(),
			results.WithClock(func() time.Time { return at }),
			results.WithIDGenerator(func() string { return "entry-1" }),
		)

		convey.Convey("When the report has a pace of aging", func() {
			e, err := p.Candidate(fullReport(), "img", "  Ada  ")

			convey.Convey("Then pace of aging is the metric", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(e.ID, convey.ShouldEqual, "entry-1")
				convey.So(e.DisplayName, convey.ShouldEqual, "Ada")
				convey.So(e.MetricKind, convey.ShouldEqual, model.MetricPaceOfAging)
				convey.So(e.Metric, convey.ShouldAlmostEqual, 0.85)
				convey.So(e.CreatedAt, convey.ShouldEqual, at)
			})
		})

		convey.Convey("When only functional age is present", func() {
			e, err := p.Candidate(&model.AnalysisReport{FunctionalAge: "30"}, "img", "Bo")

			convey.Convey("Then functional age is the metric", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(e.MetricKind, convey.ShouldEqual, model.MetricFunctionalAge)
				convey.So(e.Metric, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When only the plain age is present", func() {
			e, err := p.Candidate(&model.AnalysisReport{Age: "41"}, "img", "Cy")

			convey.Convey("Then it ranks as functional age", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(e.Metric, convey.ShouldEqual, 41)
			})
		})

		convey.Convey("When nothing numeric is present", func() {
			_, err := p.Candidate(&model.AnalysisReport{PaceOfAging: "n/a"}, "img", "Di")

			convey.Convey("Then no entry is derived", func() {
				convey.So(errors.Is(err, results.ErrNoMetric), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the name is blank or too long", func() {
			_, blank := p.Candidate(fullReport(), "img", "   ")
			_, long := p.Candidate(fullReport(), "img", strings.Repeat("x", results.MaxNameLength+1))

			convey.Convey("Then both are rejected", func() {
				convey.So(errors.Is(blank, results.ErrInvalidName), convey.ShouldBeTrue)
				convey.So(errors.Is(long, results.ErrInvalidName), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNormalizeName(t *testing.T) {
	convey.Convey("Given display names in different Unicode forms", t, func() {
		composed := "Ren\u00e9e"
		decomposed := "Rene\u0301e"

		convey.Convey("Then both normalize to the composed form", func() {
			a, err := results.NormalizeName(composed)
			convey.So(err, convey.ShouldBeNil)
			b, err := results.NormalizeName("  " + decomposed + " ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(b, convey.ShouldEqual, a)
		})

		convey.Convey("Then the length limit counts normalized runes", func() {
			name := strings.Repeat("e\u0301", results.MaxNameLength)
			got, err := results.NormalizeName(name)
			convey.So(err, convey.ShouldBeNil)
			convey.So([]rune(got), convey.ShouldHaveLength, results.MaxNameLength)
		})

		convey.Convey("Then control characters are rejected", func() {
			_, err := results.NormalizeName("Ada\x07")
			convey.So(errors.Is(err, results.ErrInvalidName), convey.ShouldBeTrue)
		})
	})
}
