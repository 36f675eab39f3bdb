package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Declared age bounds, inclusive.
const (
	MinAge = 1
	MaxAge = 119
)

// ValidateAge checks the declared age against the accepted range.
func ValidateAge(age int) error {
	if age < MinAge || age > MaxAge {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidAge, age, MinAge, MaxAge)
	}
	return nil
}

// AnalysisRequest is the payload sent to the analysis service.
type AnalysisRequest struct {
	VideoRef    string `json:"video_url"`
	ImageRef    string `json:"image_url"`
	DeclaredAge int    `json:"age"`
}

// NewAnalysisRequest builds a request from both uploaded assets and a
// declared age. Every field is mandatory.
func NewAnalysisRequest(video, image *UploadedAsset, age int) (AnalysisRequest, error) {
	if video == nil || video.RemoteRef == "" {
		return AnalysisRequest{}, fmt.Errorf("%w: video", ErrMissingAsset)
	}
	if image == nil || image.RemoteRef == "" {
		return AnalysisRequest{}, fmt.Errorf("%w: image", ErrMissingAsset)
	}
	if err := ValidateAge(age); err != nil {
		return AnalysisRequest{}, err
	}
	return AnalysisRequest{VideoRef: video.RemoteRef, ImageRef: image.RemoteRef, DeclaredAge: age}, nil
}

// Number is a report scalar kept as text. It accepts either a JSON number or
// a JSON string; the JSON type it arrived in is not kept, so numeric text
// always marshals back as a number.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	*n = Number(num.String())
	return nil
}

// MarshalJSON emits numeric text as a JSON number and anything else as a string.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.IsNumeric() {
		return []byte(n), nil
	}
	return json.Marshal(string(n))
}

// IsNumeric reports whether the text parses as a float.
func (n Number) IsNumeric() bool {
	_, err := strconv.ParseFloat(string(n), 64)
	return err == nil && json.Valid([]byte(n))
}

// Float parses the text; ok is false when it is empty or not numeric.
func (n Number) Float() (float64, bool) {
	if n == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(n), 64)
	return f, err == nil
}

// String returns the decoded text.
func (n Number) String() string { return string(n) }

// SubScore is a qualitative assessment with a 0..10 score.
type SubScore struct {
	Description string `json:"description"`
	Score       Number `json:"score"`
}

// AnalysisReport is the structured result of one analysis. It is produced
// once per session and treated as read-only afterwards.
type AnalysisReport struct {
	PaceOfAging             Number `json:"pace_of_aging,omitempty"`
	FunctionalAge           Number `json:"functional_age,omitempty"`
	Age                     Number `json:"age,omitempty"`
	BiologicalAgeDifference string `json:"biological_age_difference,omitempty"`

	HR    Number `json:"hr,omitempty"`
	SDNN  Number `json:"sdnn,omitempty"`
	RMSSD Number `json:"rmssd,omitempty"`
	PNN50 Number `json:"pnn50,omitempty"`
	NN50  Number `json:"nn50,omitempty"`

	Acne        *SubScore `json:"acne,omitempty"`
	EyeBags     *SubScore `json:"eye_bags,omitempty"`
	BrainHealth *SubScore `json:"brain_health,omitempty"`

	// Simulated marks reports produced by the demo analyzer.
	Simulated bool `json:"simulated,omitempty"`

	// Raw is the upstream body as received.
	Raw json.RawMessage `json:"-"`
}

// Clone returns a deep copy so holders cannot mutate a shared report.
func (r *AnalysisReport) Clone() *AnalysisReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Acne = cloneSub(r.Acne)
	c.EyeBags = cloneSub(r.EyeBags)
	c.BrainHealth = cloneSub(r.BrainHealth)
	if r.Raw != nil {
		c.Raw = append(json.RawMessage(nil), r.Raw...)
	}
	return &c
}

func cloneSub(s *SubScore) *SubScore {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
