// Package results exposes a finished analysis for display and derives the
// leaderboard entry a user may publish. It never mutates the report it is given.
package results

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/okian/facepace/internal/domain/model"
)

// MaxNameLength bounds the published display name, in runes.
const MaxNameLength = 64

// DisplayProfile selects the optional report sections shown to the user.
type DisplayProfile struct {
	ShowHeartRate bool
	ShowSubScores bool
}

// FullProfile shows every section.
func FullProfile() DisplayProfile {
	return DisplayProfile{ShowHeartRate: true, ShowSubScores: true}
}

// View is the read-only shape handed to clients.
type View struct {
	Report    *model.AnalysisReport `json:"report"`
	ImageRef  string                `json:"image_url,omitempty"`
	Simulated bool                  `json:"simulated"`
}

// Presenter renders reports and builds leaderboard candidates.
type Presenter struct {
	profile DisplayProfile
	now     func() time.Time
	newID   func() string
}

// NewPresenter returns a presenter using profile.
func NewPresenter(profile DisplayProfile, opts ...Option) *Presenter {
	p := &Presenter{profile: profile, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile returns the display profile.
func (p *Presenter) Profile() DisplayProfile { return p.profile }

// View returns a filtered copy of report.
func (p *Presenter) View(report *model.AnalysisReport, imageRef string) (View, error) {
	if report == nil {
		return View{}, ErrNoReport
	}
	r := report.Clone()
	r.Raw = nil
	if !p.profile.ShowHeartRate {
		r.HR, r.SDNN, r.RMSSD, r.PNN50, r.NN50 = "", "", "", "", ""
	}
	if !p.profile.ShowSubScores {
		r.Acne, r.EyeBags, r.BrainHealth = nil, nil, nil
	}
	return View{Report: r, ImageRef: imageRef, Simulated: r.Simulated}, nil
}

// Candidate derives the leaderboard entry for report. Pace of aging is
// preferred; functional age (or the plain estimated age) is used otherwise.
func (p *Presenter) Candidate(report *model.AnalysisReport, imageRef, name string) (model.LeaderboardEntry, error) {
	if report == nil {
		return model.LeaderboardEntry{}, ErrNoReport
	}
	name, err := NormalizeName(name)
	if err != nil {
		return model.LeaderboardEntry{}, err
	}
	kind, value, ok := Metric(report)
	if !ok {
		return model.LeaderboardEntry{}, ErrNoMetric
	}
	return model.LeaderboardEntry{
		ID:          p.newID(),
		DisplayName: name,
		MetricKind:  kind,
		Metric:      value,
		ImageRef:    imageRef,
		CreatedAt:   p.now().UTC(),
	}, nil
}

// NormalizeName trims name and converts it to NFC so that visually equal
// names are stored identically. Control characters are rejected.
func NormalizeName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: must be 1..%d characters", ErrInvalidName, MaxNameLength)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidName)
	}
	return name, nil
}

// Metric picks the ranking value of report.
func Metric(report *model.AnalysisReport) (model.MetricKind, float64, bool) {
	if v, ok := report.PaceOfAging.Float(); ok {
		return model.MetricPaceOfAging, v, true
	}
	if v, ok := report.FunctionalAge.Float(); ok {
		return model.MetricFunctionalAge, v, true
	}
	if v, ok := report.Age.Float(); ok {
		return model.MetricFunctionalAge, v, true
	}
	return "", 0, false
}
