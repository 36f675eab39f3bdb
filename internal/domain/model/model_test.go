package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	model "github.com/okian/facepace/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestValidateAge(t *testing.T) {
	convey.Convey("Given declared ages", t, func() {
		convey.Convey("When the age is within bounds", func() {
			convey.So(model.ValidateAge(1), convey.ShouldBeNil)
			convey.So(model.ValidateAge(34), convey.ShouldBeNil)
			convey.So(model.ValidateAge(119), convey.ShouldBeNil)
		})

		convey.Convey("When the age is out of bounds", func() {
			for _, age := range []int{-5, 0, 120, 500} {
				err := model.ValidateAge(age)
				convey.So(errors.Is(err, model.ErrInvalidAge), convey.ShouldBeTrue)
			}
		})
	})
}

func TestNewAnalysisRequest(t *testing.T) {
	convey.Convey("Given uploaded assets", t, func() {
		video := &model.UploadedAsset{Kind: model.AssetVideo, RemoteRef: "v1"}
		image := &model.UploadedAsset{Kind: model.AssetImage, RemoteRef: "i1"}

		convey.Convey("When all parts are present", func() {
			req, err := model.NewAnalysisRequest(video, image, 34)

			convey.Convey("Then the request carries every field", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(req, convey.ShouldResemble, model.AnalysisRequest{VideoRef: "v1", ImageRef: "i1", DeclaredAge: 34})
			})
		})

		convey.Convey("When the video is missing", func() {
			_, err := model.NewAnalysisRequest(nil, image, 34)
			convey.So(errors.Is(err, model.ErrMissingAsset), convey.ShouldBeTrue)
		})

		convey.Convey("When the image has no reference", func() {
			_, err := model.NewAnalysisRequest(video, &model.UploadedAsset{}, 34)
			convey.So(errors.Is(err, model.ErrMissingAsset), convey.ShouldBeTrue)
		})

		convey.Convey("When the age is invalid", func() {
			_, err := model.NewAnalysisRequest(video, image, 0)
			convey.So(errors.Is(err, model.ErrInvalidAge), convey.ShouldBeTrue)
		})
	})
}

func TestNumber(t *testing.T) {
	convey.Convey("Given a report with mixed scalar encodings", t, func() {
		body := `{"pace_of_aging":0.82,"functional_age":"30","hr":"61.5","acne":{"description":"mild","score":3}}`

		var r model.AnalysisReport
		err := json.Unmarshal([]byte(body), &r)

		convey.Convey("Then values are kept as text", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(r.PaceOfAging, convey.ShouldEqual, model.Number("0.82"))
			convey.So(r.FunctionalAge, convey.ShouldEqual, model.Number("30"))
			convey.So(r.Acne.Score.String(), convey.ShouldEqual, "3")
			f, ok := r.HR.Float()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(f, convey.ShouldEqual, 61.5)
		})

		convey.Convey("Then numeric text marshals as a number and prose as a string", func() {
			out, err := json.Marshal(struct {
				A model.Number `json:"a"`
				B model.Number `json:"b"`
			}{A: "30", B: "about thirty"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldEqual, `{"a":30,"b":"about thirty"}`)
		})

		convey.Convey("Then a decoded report re-encodes numeric strings as numbers", func() {
			convey.So(err, convey.ShouldBeNil)
			out, err := json.Marshal(r)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(out), convey.ShouldContainSubstring, `"functional_age":30`)
			convey.So(string(out), convey.ShouldContainSubstring, `"hr":61.5`)
			convey.So(string(out), convey.ShouldNotContainSubstring, `"30"`)
		})

		convey.Convey("Then an empty number is not a float", func() {
			_, ok := model.Number("").Float()
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestServiceError(t *testing.T) {
	convey.Convey("Given an upstream failure", t, func() {
		var err error = &model.ServiceError{Status: 503, Body: "busy"}

		convey.Convey("Then it matches the service kind and keeps the status", func() {
			convey.So(errors.Is(err, model.ErrAnalysisService), convey.ShouldBeTrue)
			var se *model.ServiceError
			convey.So(errors.As(err, &se), convey.ShouldBeTrue)
			convey.So(se.Status, convey.ShouldEqual, 503)
			convey.So(err.Error(), convey.ShouldContainSubstring, "busy")
		})
	})
}

func TestReportClone(t *testing.T) {
	convey.Convey("Given a report", t, func() {
		r := &model.AnalysisReport{FunctionalAge: "30", EyeBags: &model.SubScore{Description: "light", Score: "2"}}

		convey.Convey("When cloned and the copy is modified", func() {
			c := r.Clone()
			c.EyeBags.Description = "heavy"

			convey.Convey("Then the original is untouched", func() {
				convey.So(r.EyeBags.Description, convey.ShouldEqual, "light")
				convey.So(c.FunctionalAge, convey.ShouldEqual, r.FunctionalAge)
			})
		})
	})
}

func TestLeaderboardEntryLess(t *testing.T) {
	convey.Convey("Given leaderboard entries", t, func() {
		now := time.Now()
		a := model.LeaderboardEntry{ID: "a", Metric: 0.8, CreatedAt: now}
		b := model.LeaderboardEntry{ID: "b", Metric: 1.1, CreatedAt: now}
		c := model.LeaderboardEntry{ID: "c", Metric: 0.8, CreatedAt: now.Add(time.Second)}

		convey.So(a.Less(b), convey.ShouldBeTrue)
		convey.So(b.Less(a), convey.ShouldBeFalse)
		convey.So(a.Less(c), convey.ShouldBeTrue)
		convey.So(c.Less(a), convey.ShouldBeFalse)
	})
}

func TestSession(t *testing.T) {
	convey.Convey("Given a new session", t, func() {
		s := model.NewSession("s1", time.Now())

		convey.So(s.State, convey.ShouldEqual, model.SessionCapturing)
		convey.So(s.Slot(model.AssetVideo).Status, convey.ShouldEqual, model.UploadNone)

		s.Slot(model.AssetImage).Status = model.UploadPending
		convey.So(s.Image.Status, convey.ShouldEqual, model.UploadPending)
	})
}
