package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/internal/domain/results"
	"github.com/okian/facepace/pkg/logger"
)

// AnalysisDependencies defines the analysis operations used by the handlers.
type AnalysisDependencies interface {
	Analyze(ctx context.Context, id string, age int) (results.View, error)
	Report(ctx context.Context, id string) (results.View, error)
}

// AnalysisHandler handles analysis and report requests.
type AnalysisHandler struct {
	deps   AnalysisDependencies
	logger logger.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(deps AnalysisDependencies, l logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{deps: deps, logger: l}
}

type analysisRequest struct {
	Age flexAge `json:"age"`
}

// HandleAnalyze handles POST /sessions/{id}/analysis requests. The request
// blocks until the report is ready or the analysis ceiling is reached.
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze_session"
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	age, err := req.Age.Int()
	if err != nil {
		writeFailure(w, WrapKind(op, model.ErrInvalidAge, err))
		return
	}

	id := chi.URLParam(r, "id")
	view, err := h.deps.Analyze(r.Context(), id, age)
	if err != nil {
		h.logger.Warn(r.Context(), "analysis failed",
			logger.String("session_id", id),
			logger.Error(err),
		)
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleReport handles GET /sessions/{id}/report requests.
func (h *AnalysisHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report"
	view, err := h.deps.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// flexAge accepts the age as a JSON number or a numeric string.
type flexAge struct {
	raw json.RawMessage
}

func (a *flexAge) UnmarshalJSON(b []byte) error {
	a.raw = append(a.raw[:0], b...)
	return nil
}

func (a flexAge) present() bool {
	v := bytes.TrimSpace(a.raw)
	return len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte(`""`))
}

// Int returns the age as an integer.
func (a flexAge) Int() (int, error) {
	if !a.present() {
		return 0, errors.New("missing age")
	}
	var text string
	if err := json.Unmarshal(a.raw, &text); err != nil {
		text = string(a.raw)
	}
	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("age %q is not a whole number", text)
	}
	return int(f), nil
}
