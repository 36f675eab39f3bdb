package model

import "time"

// SessionState tracks a capture session through analysis.
type SessionState string

const (
	SessionCapturing SessionState = "capturing"
	SessionAnalyzing SessionState = "analyzing"
	SessionAnalyzed  SessionState = "analyzed"
	SessionFailed    SessionState = "failed"
)

// UploadStatus is the lifecycle of one asset slot.
type UploadStatus string

const (
	UploadNone     UploadStatus = "none"
	UploadPending  UploadStatus = "pending"
	UploadUploaded UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "failed"
)

// AssetSlot holds the upload state of one artifact kind.
type AssetSlot struct {
	Status UploadStatus   `json:"status"`
	Asset  *UploadedAsset `json:"asset,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Session is the server-side record handed across client navigation by id.
type Session struct {
	ID            string          `json:"id"`
	State         SessionState    `json:"state"`
	Video         AssetSlot       `json:"video"`
	Image         AssetSlot       `json:"image"`
	DeclaredAge   int             `json:"declared_age,omitempty"`
	Report        *AnalysisReport `json:"report,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LeaderboardID string          `json:"leaderboard_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewSession returns a fresh session in the capturing state.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     SessionCapturing,
		Video:     AssetSlot{Status: UploadNone},
		Image:     AssetSlot{Status: UploadNone},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Slot returns the slot for kind.
func (s *Session) Slot(kind AssetKind) *AssetSlot {
	if kind == AssetVideo {
		return &s.Video
	}
	return &s.Image
}
