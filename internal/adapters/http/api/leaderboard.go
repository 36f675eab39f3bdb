package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/facepace/internal/adapters/repository"
	"github.com/okian/facepace/internal/domain/results"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Publish(ctx context.Context, sessionID, name string) (repository.Ranked, error)
	TopN(ctx context.Context, n int) ([]repository.Ranked, error)
	Rank(ctx context.Context, entryID string) (repository.Ranked, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type publishRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// HandlePublish handles POST /leaderboard requests.
func (h *LeaderboardHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	const op = "api.publish"
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.SessionID == "" {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("missing session_id")))
		return
	}
	entry, err := h.deps.Publish(r.Context(), req.SessionID, req.Name)
	if err != nil {
		if errors.Is(err, results.ErrNoReport) {
			writeError(w, http.StatusConflict, "no_report", Wrap(op, err))
			return
		}
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests. Without a
// limit the default page is returned.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []repository.Ranked{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetEntry handles GET /leaderboard/{entry_id} requests.
func (h *LeaderboardHandler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_entry"
	entry, err := h.deps.Rank(r.Context(), chi.URLParam(r, "entry_id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
