package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// SessionDependencies defines the session operations used by the handlers.
type SessionDependencies interface {
	CreateSession(ctx context.Context) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	UploadAsset(ctx context.Context, id string, kind model.AssetKind, blob model.Blob) (model.Session, error)
}

// sessionResponse is the session record without its report; the report is
// served by /sessions/{id}/report through the results presenter.
type sessionResponse struct {
	SessionID     string             `json:"session_id"`
	State         model.SessionState `json:"state"`
	Video         model.AssetSlot    `json:"video"`
	Image         model.AssetSlot    `json:"image"`
	DeclaredAge   int                `json:"declared_age,omitempty"`
	HasReport     bool               `json:"has_report"`
	LastError     string             `json:"last_error,omitempty"`
	LeaderboardID string             `json:"leaderboard_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func newSessionResponse(s model.Session) sessionResponse {
	return sessionResponse{
		SessionID:     s.ID,
		State:         s.State,
		Video:         s.Video,
		Image:         s.Image,
		DeclaredAge:   s.DeclaredAge,
		HasReport:     s.Report != nil,
		LastError:     s.LastError,
		LeaderboardID: s.LeaderboardID,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// SessionsHandler handles session lifecycle and upload requests.
type SessionsHandler struct {
	deps           SessionDependencies
	maxUploadBytes int64
	logger         logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies, maxUploadBytes int64, l logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, maxUploadBytes: maxUploadBytes, logger: l}
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	s, err := h.deps.CreateSession(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(s))
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	s, err := h.deps.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

// HandleUpload handles PUT /sessions/{id}/video and PUT /sessions/{id}/image.
// The body is either the raw media or a multipart form with a "file" part.
func (h *SessionsHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload_asset"
	kind := model.AssetKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrBadRequest))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	blob, err := readBlob(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if blob.Empty() {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("empty body")))
		return
	}

	id := chi.URLParam(r, "id")
	s, err := h.deps.UploadAsset(r.Context(), id, kind, blob)
	if err != nil {
		h.logger.Warn(r.Context(), "upload rejected",
			logger.String("session_id", id),
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, newSessionResponse(s))
}

func readBlob(r *http.Request) (model.Blob, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return model.Blob{}, fmt.Errorf("read body: %w", err)
		}
		if mediaType == "" {
			mediaType = http.DetectContentType(data)
		}
		return model.Blob{Data: data, ContentType: mediaType}, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return model.Blob{}, fmt.Errorf("read form file: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return model.Blob{}, fmt.Errorf("read form file: %w", err)
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = http.DetectContentType(data)
	}
	return model.Blob{Data: data, ContentType: ct}, nil
}
